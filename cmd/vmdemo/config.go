package main

// DemoConfig is vmdemo's own configuration, loaded via vmconfig.Load the
// way the teacher's MemoryConfig was loaded via CargarConfiguracion, but
// from TOML instead of JSON.
type DemoConfig struct {
	LogLevel    string `toml:"log_level"`
	FrameCount  int    `toml:"frame_count"`   // physical frames in the fake allocator's pool
	SwapSectors int    `toml:"swap_sectors"`  // sector capacity of the fake swap disk
	DumpPath    string `toml:"dump_path"`     // where DumpProcess output is written
}
