// Command vmdemo drives internal/vm end to end against the in-memory
// fakes in internal/vmfake, standing in for the module's own "rest of
// the kernel". It replaces the teacher's HTTP-served Memoria module with
// a single-process walkthrough of the scenarios spec.md §8 describes.
package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/ProdMoon/pintos-kaist-secondhalf/internal/vm"
	"github.com/ProdMoon/pintos-kaist-secondhalf/internal/vmconfig"
	"github.com/ProdMoon/pintos-kaist-secondhalf/internal/vmfake"
	"github.com/ProdMoon/pintos-kaist-secondhalf/internal/vmlog"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <config.toml>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "example: %s configs/vmdemo.toml\n", os.Args[0])
		os.Exit(1)
	}

	cfg, err := vmconfig.Load[DemoConfig](os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "vmdemo: %v\n", err)
		os.Exit(1)
	}

	vmlog.Init(cfg.LogLevel, "vmdemo")
	vmlog.Log.WithField("config_path", os.Args[1]).Info("vmdemo starting")

	if err := os.MkdirAll(cfg.DumpPath, 0o755); err != nil {
		vmlog.Log.WithField("error", err).Warn("could not create dump directory")
	}

	alloc := vmfake.NewPhysicalAllocator(cfg.FrameCount)
	disk := vmfake.NewSwapDisk(cfg.SwapSectors)
	sys := vm.Init(alloc, disk, nil)
	mmu := vmfake.NewMMU()
	spt := vm.NewSupplementalPageTable(sys, mmu)

	runMmapWalkthrough(spt, mmu)
	runEvictionWalkthrough(spt, alloc)
	runStackGrowthWalkthrough(spt)
	// spt now holds every frame of alloc, so the fork walkthrough runs on
	// a System with its own allocator and swap disk.
	runForkWalkthrough(vm.Init(vmfake.NewPhysicalAllocator(cfg.FrameCount), vmfake.NewSwapDisk(cfg.SwapSectors), nil))
	dumpToFile(spt, cfg.DumpPath)

	m := spt.Metrics()
	vmlog.Log.WithField("metrics", fmt.Sprintf("%+v", m)).Info("vmdemo finished")
}

// runMmapWalkthrough is spec.md scenario 1/2: map a file, read its
// content and zero tail, dirty a page, unmap it, and check the write-back
// landed in the backing file.
func runMmapWalkthrough(spt *vm.SupplementalPageTable, mmu *vmfake.MMU) {
	content := bytes.Repeat([]byte{0xAB}, 5000)
	file := vmfake.NewFile(content)

	addr, err := spt.Mmap(0x10000000, 5000, true, file, 0)
	if err != nil {
		vmlog.Log.WithField("error", err).Fatal("mmap failed")
	}
	if _, err := spt.ClaimVA(addr); err != nil {
		vmlog.Log.WithField("error", err).Fatal("claim of mmap head failed")
	}

	page, _ := spt.Find(addr)
	for i := range page.Frame.KVA {
		page.Frame.KVA[i] = 0xCC
	}
	mmu.Touch(addr) // the fake MMU sets no dirty bit on its own

	if err := spt.Munmap(addr); err != nil {
		vmlog.Log.WithField("error", err).Fatal("munmap failed")
	}
	vmlog.Log.WithField("first_byte_written_back", file.Snapshot()[0]).Info("mmap walkthrough complete")
}

// runEvictionWalkthrough is scenario 3: allocate more anonymous pages
// than there are frames and check eviction round-trips content.
func runEvictionWalkthrough(spt *vm.SupplementalPageTable, alloc *vmfake.PhysicalAllocator) {
	const pages = 3 * 4 // three times the frame_count of configs/vmdemo.toml
	base := vm.VA(0x40000000)
	for i := 0; i < pages; i++ {
		va := base.Add(i * vm.PageSize)
		if _, err := spt.Alloc(vm.MarkerNone, va, true); err != nil {
			vmlog.Log.WithField("error", err).Fatal("anon alloc failed")
		}
		if _, err := spt.ClaimVA(va); err != nil {
			vmlog.Log.WithField("error", err).Fatal("anon claim failed")
		}
		page, _ := spt.Find(va)
		page.Frame.KVA[0] = byte(i)
	}
	for i := 0; i < pages; i++ {
		va := base.Add(i * vm.PageSize)
		page, _ := spt.Find(va)
		if !page.Resident() {
			if _, err := spt.ClaimVA(va); err != nil {
				vmlog.Log.WithField("error", err).Fatal("anon re-claim failed")
			}
		}
		if page.Frame.KVA[0] != byte(i) {
			vmlog.Log.WithField("va", uintptr(va)).Fatal("evicted page lost its content")
		}
	}
	vmlog.Log.WithField("frames_available", alloc.Available()).Info("eviction walkthrough complete")
}

// runStackGrowthWalkthrough is scenario 4: a push-heuristic fault grows
// the stack, and an address below STACK_FLOOR is rejected.
func runStackGrowthWalkthrough(spt *vm.SupplementalPageTable) {
	rsp := vm.UserStackTop - vm.PageSize
	if !spt.TryHandleFault(rsp-8, true, true, true, rsp) {
		vmlog.Log.Fatal("expected push-heuristic stack growth to succeed")
	}

	below := vm.UserStackTop - 2*1024*1024
	if spt.TryHandleFault(below, true, true, true, rsp) {
		vmlog.Log.Fatal("expected access below STACK_FLOOR to fail")
	}
	vmlog.Log.Info("stack growth walkthrough complete")
}

// runForkWalkthrough is scenario 5: fork a process and check parent and
// child no longer share writes.
func runForkWalkthrough(sys *vm.System) {
	parentMMU := vmfake.NewMMU()
	parent := vm.NewSupplementalPageTable(sys, parentMMU)

	const va = vm.VA(0x50000000)
	if _, err := parent.Alloc(vm.MarkerNone, va, true); err != nil {
		vmlog.Log.WithField("error", err).Fatal("fork demo: parent alloc failed")
	}
	if _, err := parent.ClaimVA(va); err != nil {
		vmlog.Log.WithField("error", err).Fatal("fork demo: parent claim failed")
	}
	page, _ := parent.Find(va)
	page.Frame.KVA[0] = 0x11

	childMMU := vmfake.NewMMU()
	child := vm.NewSupplementalPageTable(sys, childMMU)
	if err := child.Duplicate(parent); err != nil {
		vmlog.Log.WithField("error", err).Fatal("fork failed")
	}

	childPage, _ := child.Find(va)
	childPage.Frame.KVA[0] = 0x22

	parentPage, _ := parent.Find(va)
	vmlog.Log.WithField("parent_byte", parentPage.Frame.KVA[0]).
		WithField("child_byte", childPage.Frame.KVA[0]).
		Info("fork walkthrough complete")
}

func dumpToFile(spt *vm.SupplementalPageTable, dir string) {
	path := dir + "/vmdemo.dmp"
	f, err := os.Create(path)
	if err != nil {
		vmlog.Log.WithField("error", err).Warn("could not create dump file")
		return
	}
	defer f.Close()

	if err := vm.DumpProcess(spt, f); err != nil {
		vmlog.Log.WithField("error", err).Warn("dump failed")
		return
	}
	vmlog.Log.WithField("path", path).Info("memory dump written")
}
