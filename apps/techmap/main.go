//
// main.go
//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime/pprof"

	"github.com/markkurossi/techmap"
	"github.com/markkurossi/techmap/library"
	"github.com/markkurossi/techmap/network"
	"github.com/markkurossi/techmap/utils"
)

func main() {
	libFile := flag.String("lib", "", "cell library `file`")
	mode := flag.String("mode", "delay",
		"mapping mode: area, delay, blend, threshold, slack")
	blend := flag.Float64("blend", 0.5, "area weight of the blend mode")
	threshold := flag.Float64("threshold", 0, "slack threshold")
	fanout := flag.String("fanout", "reject",
		"internal fanout policy: reject, bounded, unbounded")
	limit := flag.Int("limit", 4, "fanout limit of the bounded policy")
	leaf := flag.Bool("leaf", false, "distinguish leaf-level fanout")
	dup := flag.Bool("dup", false, "allow duplication across polarities")
	penalty := flag.Float64("penalty", 1.0, "load limit penalty factor")
	iterations := flag.Int("iter", 1, "map and fanout iterations")
	algs := flag.String("algs", "",
		"enabled fanout algorithms, separated by commas")
	gaps := flag.Int("gaps", 1, "LT-tree gap budget")
	force := flag.Bool("force", false, "force negative required times")
	recovery := flag.Bool("recovery", false, "recover area after timing")
	resize := flag.Bool("resize", false, "resize gates in area recovery")
	nofanout := flag.Bool("nofanout", false, "disable fanout optimization")
	out := flag.String("o", "", "write the mapped network to `file`")
	verbose := flag.Int("v", 0, "verbosity level")
	profile := flag.Bool("profile", false, "print the pass timing profile")
	cpuprofile := flag.String("cpuprofile", "", "write cpu profile to `file`")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(),
			"Usage: %s [options] map|print|stats|dot FILE.net\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	log.SetFlags(0)

	if len(flag.Args()) != 2 {
		flag.Usage()
		os.Exit(1)
	}
	cmd := flag.Args()[0]
	file := flag.Args()[1]
	switch cmd {
	case "map", "print", "stats", "dot":
	default:
		log.Fatalf("unknown command: %s", cmd)
	}

	if len(*cpuprofile) > 0 {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	net, err := loadNetwork(file)
	if err != nil {
		log.Fatal(err)
	}
	if cmd == "dot" && len(*libFile) == 0 {
		net.Dot(os.Stdout)
		return
	}

	params := utils.NewParams()
	params.Verbose = *verbose
	params.Mode, err = utils.ParseMode(*mode)
	if err != nil {
		log.Fatal(err)
	}
	params.Blend = *blend
	params.Threshold = *threshold
	switch *fanout {
	case "reject":
		params.InternalFanout = utils.FanoutReject
	case "bounded":
		params.InternalFanout = utils.FanoutBounded
	case "unbounded":
		params.InternalFanout = utils.FanoutUnbounded
	default:
		log.Fatalf("unknown fanout policy: %s", *fanout)
	}
	params.FanoutLimit = *limit
	params.LeafLevelFanout = *leaf
	params.AllowDuplication = *dup
	params.LoadPenalty = *penalty
	params.Iterations = *iterations
	if len(*algs) > 0 {
		if err := params.SetAlgorithms(*algs); err != nil {
			log.Fatal(err)
		}
	}
	params.Fanout.MaxGaps = *gaps
	params.Fanout.ForceRequired = *force
	params.Fanout.AreaRecovery = *recovery
	params.Fanout.Resize = *resize
	params.Fanout.Disabled = *nofanout

	if len(*libFile) == 0 {
		log.Fatal("no cell library specified")
	}
	logger := utils.NewLogger(os.Stderr, *verbose)
	lib, err := loadLibrary(*libFile, logger)
	if err != nil {
		log.Fatal(err)
	}

	report, err := techmap.Synthesize(net, lib, params, logger)
	if err != nil {
		log.Fatal(err)
	}

	switch cmd {
	case "map":
		report.Timing.Print(os.Stdout)
	case "print":
		report.PrintGates(os.Stdout)
	case "stats":
		report.PrintStats(os.Stdout)
	case "dot":
		net.Dot(os.Stdout)
	}
	if *profile {
		report.Profile.Print(os.Stdout)
	}

	if len(*out) > 0 {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		if err := net.Marshal(f); err != nil {
			log.Fatal(err)
		}
	}
}

func loadNetwork(file string) (*network.Network, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return network.Parse(f, file)
}

func loadLibrary(file string, logger *utils.Logger) (*library.Library, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return library.Parse(f, file, logger)
}
