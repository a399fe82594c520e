package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/surfsidere/kova-scroll/internal/config"
	"github.com/surfsidere/kova-scroll/internal/contrast"
	"github.com/surfsidere/kova-scroll/internal/events"
	"github.com/surfsidere/kova-scroll/internal/loader"
	"github.com/surfsidere/kova-scroll/internal/motion"
	"github.com/surfsidere/kova-scroll/internal/scroll"
	"github.com/surfsidere/kova-scroll/internal/section"
	"github.com/surfsidere/kova-scroll/internal/stacking"
	"github.com/surfsidere/kova-scroll/internal/system"
)

// simIsolator stands in for the rendering host: mounting a section just
// takes time proportional to its estimated size.
type simIsolator struct {
	kbPerMs float64
	sizes   map[string]int
}

func (s *simIsolator) Mount(ctx context.Context, id string) error {
	d := time.Duration(float64(s.sizes[id])/s.kbPerMs) * time.Millisecond
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
	}
	fmt.Printf("[*] mounted %s (%dKB, %v)\n", id, s.sizes[id], d)
	return nil
}

func (s *simIsolator) Unmount(id string) {
	fmt.Printf("[*] unmounted %s\n", id)
}

func main() {
	defaults := config.Default()

	manifestPtr := flag.String("manifest", "", "Path to experience manifest (default: latest in manifests/)")
	distancePtr := flag.Float64("distance", defaults.ScrollDistance, "Scroll distance in pixels")
	stepsPtr := flag.Int("steps", 120, "Number of scroll ticks to replay")
	framePtr := flag.Int("frame", 16, "Milliseconds between ticks")
	reducedPtr := flag.Bool("reduced-motion", false, "Snap animations instead of easing them")
	networkPtr := flag.String("network", "fast", "Network quality: fast, moderate, slow")
	memLimitPtr := flag.Int("mem-limit", defaults.MemoryLimitMB, "RSS in MB before preloading pauses")
	statsPtr := flag.Bool("stats", false, "Print event bus statistics")
	flag.Parse()

	os.MkdirAll(defaults.ManifestDir, 0755)

	manifestPath := *manifestPtr
	if manifestPath == "" {
		latest, err := config.FindLatestManifest(defaults.ManifestDir)
		if err != nil {
			manifestPath = config.ManifestPath(defaults.ManifestDir)
			if werr := config.WriteManifest(demoManifest(), manifestPath); werr != nil {
				log.Fatalf("[-] failed to write demo manifest: %v", werr)
			}
			fmt.Printf("[*] no manifest found, wrote demo: %s\n", manifestPath)
		} else {
			manifestPath = latest
			fmt.Printf("[*] using manifest: %s\n", manifestPath)
		}
	}

	m, err := config.ReadManifest(manifestPath)
	if err != nil {
		log.Fatalf("[-] failed to read manifest: %v", err)
	}
	sectionConfigs, err := m.SectionConfigs()
	if err != nil {
		log.Fatalf("[-] invalid manifest: %v", err)
	}

	bus := events.NewBus()
	defer bus.Close()
	sink := make(chan events.Event, 256)
	if err := bus.Subscribe("cli", sink); err != nil {
		log.Fatalf("[-] bus subscription failed: %v", err)
	}

	coordinator := motion.NewCoordinator(
		motion.WithScrollDistance(*distancePtr),
		motion.WithReducedMotion(*reducedPtr),
	)
	registry := section.NewRegistry(section.WithBus(bus), section.WithCoordinator(coordinator))
	adapter := scroll.NewAdapter(nil)
	defer adapter.Close()
	conductor := section.NewConductor(adapter, registry, coordinator, bus)
	defer conductor.Close()
	orchestrator := stacking.NewOrchestrator(registry,
		stacking.WithBus(bus),
		stacking.WithTransitionEpsilon(defaults.TransitionEpsilon),
	)

	iso := &simIsolator{kbPerMs: 50, sizes: make(map[string]int)}
	ld := loader.New(iso,
		loader.WithLoaderBus(bus),
		loader.WithConcurrentLoads(defaults.ConcurrentLoads),
		loader.WithPreloadDistance(defaults.PreloadDistance),
	)
	switch *networkPtr {
	case "slow":
		ld.SetNetworkQuality(loader.QualitySlow)
	case "moderate":
		ld.SetNetworkQuality(loader.QualityModerate)
	case "fast":
	default:
		log.Fatalf("[-] unknown network quality %q", *networkPtr)
	}

	resolver := contrast.NewResolver()

	for i, spec := range m.Sections {
		cfg := sectionConfigs[i]
		if _, err := registry.Register(cfg); err != nil {
			log.Fatalf("[-] section %q: %v", cfg.ID, err)
		}
		conductor.Watch(cfg.ID)
		orchestrator.AddRule(stacking.Rule{
			SectionID: cfg.ID,
			Layer:     cfg.Layer,
			Priority:  len(m.Sections) - i,
		})

		md, err := spec.Metadata()
		if err != nil {
			log.Fatalf("[-] section %q: %v", cfg.ID, err)
		}
		iso.sizes[md.ID] = md.EstimatedSizeKB
		if err := ld.Register(md); err != nil {
			log.Fatalf("[-] section %q: %v", cfg.ID, err)
		}

		for j, anim := range spec.Animations {
			id := anim.ID
			if id == "" {
				id = fmt.Sprintf("%s-anim-%d", cfg.ID, j)
			}
			if anim.IsScrollTransform() {
				if _, err := coordinator.CreateScrollTransform(cfg.ID, anim.Input, anim.Output); err != nil {
					log.Fatalf("[-] animation %q: %v", id, err)
				}
				continue
			}
			params, err := anim.Params()
			if err != nil {
				log.Fatalf("[-] animation %q: %v", id, err)
			}
			if _, err := coordinator.Create(id, cfg.ID, params); err != nil {
				log.Fatalf("[-] animation %q: %v", id, err)
			}
		}

		if spec.Backdrop != "" {
			bg, err := contrast.ParseHex(spec.Backdrop)
			if err != nil {
				log.Fatalf("[-] section %q: %v", cfg.ID, err)
			}
			scheme := resolver.Resolve(cfg.Contrast, bg)
			fmt.Printf("[*] section %-12s backdrop %s resolves to %s foreground\n",
				cfg.ID, spec.Backdrop, scheme)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ld.Start(ctx, time.Duration(defaults.QueueIntervalMS)*time.Millisecond)

	monitor := system.NewMonitor(*memLimitPtr,
		time.Duration(defaults.MemoryPollMS)*time.Millisecond,
		system.WithMonitorBus(bus),
		system.WithOnChange(ld.SetMemoryPressure),
	)
	monitor.Start(ctx)
	defer monitor.Stop()

	// Entered sections load on demand; everything else arrives through the
	// preload queue.
	go func() {
		for ev := range sink {
			if ev.Kind != events.SectionEntered {
				continue
			}
			id := ev.SectionID
			go func() {
				if _, err := ld.Load(ctx, id, loader.LoadOptions{}); err != nil {
					log.Printf("[!] load %q: %v", id, err)
				}
			}()
			ld.NotifyViewport(id)
		}
	}()

	fmt.Printf("[*] replaying %d ticks over %.0fpx\n", *stepsPtr, *distancePtr)
	start := time.Now()
	frame := time.Duration(*framePtr) * time.Millisecond
	for step := 0; step <= *stepsPtr; step++ {
		offset := *distancePtr * float64(step) / float64(*stepsPtr)
		adapter.Pump(offset, *distancePtr)
		time.Sleep(frame)
	}
	adapter.Settle()

	// Let in-flight loads settle before reporting.
	time.Sleep(500 * time.Millisecond)
	cancel()

	printReport(registry, orchestrator, ld, coordinator)
	if *statsPtr {
		printStats(bus)
	}
	fmt.Printf("[*] done in %v\n", time.Since(start).Round(time.Millisecond))
}

func printReport(reg *section.Registry, orch *stacking.Orchestrator, ld *loader.Loader, coord *motion.Coordinator) {
	fmt.Println()
	fmt.Println("section        layer             z-index  progress  state")
	for _, s := range reg.Snapshot() {
		z := s.ZIndex
		if st, ok := orch.ZIndexState(s.ID); ok {
			z = st.AssignedIndex
		}
		state := "idle"
		if s.Active {
			state = "active"
		}
		fmt.Printf("%-14s %-16s %8d  %8.2f  %s\n", s.ID, s.Layer, z, s.Progress, state)
	}

	snap := ld.State()
	fmt.Printf("\nloaded: %v\n", snap.Loaded)
	if len(snap.Failed) > 0 {
		fmt.Printf("failed: %v\n", snap.Failed)
	}
	var buckets []loader.Priority
	for p := range snap.UsedKB {
		buckets = append(buckets, p)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i] < buckets[j] })
	for _, p := range buckets {
		fmt.Printf("bucket %-10s %5dKB used\n", p, snap.UsedKB[p])
	}
	fmt.Printf("animations still registered: %d\n", coord.Len())
}

func printStats(bus *events.Bus) {
	stats := bus.Stats()
	fmt.Printf("\nevents published: %d, sent: %d, dropped: %d\n",
		stats.TotalPublished, stats.TotalSent, stats.TotalDropped)
	for id, sub := range stats.Subscribers {
		if sub.Dropped > 0 {
			fmt.Printf("subscriber %s dropped %d events\n", id, sub.Dropped)
		}
	}
}

// demoManifest is written on first run so the simulator has something to
// replay.
func demoManifest() *config.Manifest {
	return &config.Manifest{
		Version:    "1.0",
		Experience: "demo",
		Director:   &config.DirectorSpec{Overlap: 0.1},
		Sections: []config.SectionSpec{
			{
				ID: "hero", Name: "Hero", Route: "/", Layer: "content-elevated",
				Priority: "critical", Backdrop: "#0a0a1a", Weight: 2, EstimatedSizeKB: 320,
				Animations: []config.AnimationSpec{
					{ID: "hero-fade", Kind: "fade", From: []float64{0}, To: []float64{1}},
					{Kind: "parallax", Strength: 0.4},
				},
			},
			{
				ID: "story", Name: "Story", Route: "/story",
				Priority: "above-fold", Backdrop: "#f5f0e8", EstimatedSizeKB: 540,
				Animations: []config.AnimationSpec{
					{ID: "story-slide", Kind: "slide", From: []float64{0, 120}, To: []float64{0, 0}},
					{Kind: "scroll-transform", Input: []float64{0, 0.5, 1}, Output: []float64{0, 40, 0}},
				},
			},
			{
				ID: "gallery", Name: "Gallery", Route: "/gallery",
				Priority: "below-fold", PreloadTrigger: "viewport", EstimatedSizeKB: 890,
				Dependencies: []string{"story"},
			},
			{
				ID: "contact", Name: "Contact", Route: "/contact", Layer: "overlay",
				Priority: "lazy", PreloadTrigger: "idle", EstimatedSizeKB: 120,
			},
		},
	}
}
