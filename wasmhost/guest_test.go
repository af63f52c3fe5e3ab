package wasmhost

// Hand-assembled guest runtime used by the tests. It knows one assembly
// ("App.dll" -> id 42, name "App", types 1..3), traps on any 8-byte path,
// and records the last internal call upload and context unload in exported
// globals.

const (
	valI32 = 0x7F
	valI64 = 0x7E

	opUnreachable = 0x00
	opIf          = 0x04
	opElse        = 0x05
	opEnd         = 0x0B
	opLocalGet    = 0x20
	opGlobalGet   = 0x23
	opGlobalSet   = 0x24
	opI32Store    = 0x36
	opI64Store    = 0x37
	opI32Const    = 0x41
	opI64Const    = 0x42
	opI32Eqz      = 0x45
	opI32Eq       = 0x46
	opI32Add      = 0x6A
	opI64Add      = 0x7C
	opI64Mul      = 0x7E
	opI64Or       = 0x84
	opI64Shl      = 0x86

	blockVoid = 0x40
)

// Guest globals.
const (
	globalHeap = iota
	globalStatus
	globalCallsCount
	globalUnloaded
	globalNextContext
	globalCallsPtr
)

func uleb(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

func sleb(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func vec(items ...[]byte) []byte {
	return concat(uleb(uint64(len(items))), concat(items...))
}

func wasmName(s string) []byte {
	return concat(uleb(uint64(len(s))), []byte(s))
}

func section(id byte, items ...[]byte) []byte {
	payload := vec(items...)
	return concat([]byte{id}, uleb(uint64(len(payload))), payload)
}

func funcType(params, results []byte) []byte {
	return concat([]byte{0x60}, uleb(uint64(len(params))), params, uleb(uint64(len(results))), results)
}

func body(code ...[]byte) []byte {
	fn := concat([]byte{0x00}, concat(code...), []byte{opEnd})
	return concat(uleb(uint64(len(fn))), fn)
}

func i32Const(v int32) []byte {
	return concat([]byte{opI32Const}, sleb(int64(v)))
}

func i64Const(v int64) []byte {
	return concat([]byte{opI64Const}, sleb(v))
}

func localGet(i uint32) []byte {
	return concat([]byte{opLocalGet}, uleb(uint64(i)))
}

func globalGet(i uint32) []byte {
	return concat([]byte{opGlobalGet}, uleb(uint64(i)))
}

func globalSet(i uint32) []byte {
	return concat([]byte{opGlobalSet}, uleb(uint64(i)))
}

func memarg(align, offset uint32) []byte {
	return concat(uleb(uint64(align)), uleb(uint64(offset)))
}

func mutGlobal(init int32) []byte {
	return concat([]byte{valI32, 0x01}, i32Const(init), []byte{opEnd})
}

func export(name string, kind byte, index uint32) []byte {
	return concat(wasmName(name), []byte{kind}, uleb(uint64(index)))
}

func data(offset int32, s string) []byte {
	return concat([]byte{0x00}, i32Const(offset), []byte{opEnd}, wasmName(s))
}

func header() []byte {
	return []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}
}

// testGuest builds the full guest.
func testGuest() []byte {
	i32, i64 := []byte{valI32}, []byte{valI64}
	types := section(1,
		funcType(i32, i32),                            // 0 alloc
		funcType([]byte{valI32, valI32, valI32}, i32), // 1 load
		funcType(nil, i32),                            // 2 last status
		funcType(i32, i64),                            // 3 assembly name
		funcType([]byte{valI32, valI32, valI32}, nil), // 4 assembly types
		funcType(i64, i64),                            // 5 type name
		funcType([]byte{valI32, valI32}, nil),         // 6 internal calls
		funcType([]byte{valI32, valI32}, i32),         // 7 create context
		funcType(i32, nil),                            // 8 unload context
	)
	funcs := section(3,
		uleb(0), uleb(1), uleb(2), uleb(3), uleb(4), uleb(5), uleb(6), uleb(7), uleb(8))
	memory := section(5, []byte{0x00, 0x01})
	globals := section(6,
		mutGlobal(1024), // heap
		mutGlobal(0),    // status
		mutGlobal(-1),   // calls_count
		mutGlobal(0),    // unloaded
		mutGlobal(0),    // next context
		mutGlobal(0),    // calls_ptr
	)
	exportSec := section(7,
		export("memory", 0x02, 0),
		export(exportAlloc, 0x00, 0),
		export(exportLoad, 0x00, 1),
		export(exportLastStatus, 0x00, 2),
		export(exportAssemblyName, 0x00, 3),
		export(exportAssemblyTypes, 0x00, 4),
		export(exportTypeName, 0x00, 5),
		export(exportInternalCalls, 0x00, 6),
		export(exportCreateContext, 0x00, 7),
		export(exportUnloadContext, 0x00, 8),
		export("calls_count", 0x03, globalCallsCount),
		export("calls_ptr", 0x03, globalCallsPtr),
		export("unloaded", 0x03, globalUnloaded),
	)

	code := section(10,
		// alloc: bump allocator, returns the old heap top.
		body(
			globalGet(globalHeap),
			globalGet(globalHeap), localGet(0), []byte{opI32Add}, globalSet(globalHeap),
		),
		// load: len 8 traps, len 7 succeeds with id 42, else FileNotFound.
		body(
			localGet(2), i32Const(8), []byte{opI32Eq},
			[]byte{opIf, blockVoid, opUnreachable, opEnd},
			localGet(2), i32Const(7), []byte{opI32Eq},
			[]byte{opIf, valI32},
			i32Const(0), globalSet(globalStatus), i32Const(42),
			[]byte{opElse},
			i32Const(1), globalSet(globalStatus), i32Const(0),
			[]byte{opEnd},
		),
		// last status
		body(globalGet(globalStatus)),
		// assembly name: "App" at 16
		body(i64Const(16<<32|3)),
		// assembly types: count query or fill with ids 1, 2, 3
		body(
			localGet(1), []byte{opI32Eqz},
			[]byte{opIf, blockVoid},
			localGet(2), i32Const(3), []byte{opI32Store}, memarg(2, 0),
			[]byte{opElse},
			localGet(1), i64Const(1), []byte{opI64Store}, memarg(3, 0),
			localGet(1), i64Const(2), []byte{opI64Store}, memarg(3, 8),
			localGet(1), i64Const(3), []byte{opI64Store}, memarg(3, 16),
			localGet(2), i32Const(3), []byte{opI32Store}, memarg(2, 0),
			[]byte{opEnd},
		),
		// type name: 11-byte names at 16 + id*16
		body(
			localGet(0), i64Const(16), []byte{opI64Mul}, i64Const(16), []byte{opI64Add},
			i64Const(32), []byte{opI64Shl}, i64Const(11), []byte{opI64Or},
		),
		// internal calls: remember the table
		body(
			localGet(0), globalSet(globalCallsPtr),
			localGet(1), globalSet(globalCallsCount),
		),
		// create context: sequential ids from 1
		body(
			globalGet(globalNextContext), i32Const(1), []byte{opI32Add}, globalSet(globalNextContext),
			globalGet(globalNextContext),
		),
		// unload context
		body(localGet(0), globalSet(globalUnloaded)),
	)

	dataSec := section(11,
		data(16, "App"),
		data(32, "App.Program"),
		data(48, "App.Service"),
		data(64, "App.Helpers"),
	)

	return concat(header(), types, funcs, memory, globals, exportSec, code, dataSec)
}

// memoryOnlyGuest exports memory and nothing else.
func memoryOnlyGuest() []byte {
	return concat(header(),
		section(5, []byte{0x00, 0x01}),
		section(7, export("memory", 0x02, 0)),
	)
}
