package wasmhost

// DefaultModuleName is the instance name used when Config.ModuleName is empty.
const DefaultModuleName = "clrhost"

// Config holds configuration for guest instantiation
type Config struct {
	// ModuleName names the guest instance inside the wazero runtime.
	ModuleName string

	// MemoryLimitPages sets the maximum guest memory in pages (64KB each).
	// 0 means the wazero default (65536 pages = 4GB).
	MemoryLimitPages uint32
}

func (c *Config) moduleName() string {
	if c == nil || c.ModuleName == "" {
		return DefaultModuleName
	}
	return c.ModuleName
}
