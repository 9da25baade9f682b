package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/hajimehoshi/ebiten/v2"

	"starfolio/navigator/internal/logging"
	"starfolio/navigator/internal/navigation"
	"starfolio/navigator/internal/orbit"
	"starfolio/navigator/internal/proximity"
	"starfolio/navigator/internal/replay"
	"starfolio/navigator/tools/viewer"
)

func main() {
	seed := flag.Uint64("seed", 0, "seed for body phases and warp jitter; 0 draws one")
	tieBreak := flag.String("tiebreak", "first", "proximity tie break: first or nearest")
	recording := flag.String("recording", "", "recording directory whose sky (phases and seed) to fly")
	level := flag.String("log-level", "info", "log level written to stderr")
	flag.Parse()

	logger, err := logging.NewConsole(os.Stderr, *level, "viewer")
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	policy, ok := proximity.ParseTieBreak(*tieBreak)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown tie break %q\n", *tieBreak)
		os.Exit(1)
	}

	//1.- Rebuild a recorded sky when asked, otherwise draw phases from the seed.
	registry, sessionSeed, err := buildRegistry(*seed, *recording)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
	logger.Info("viewer starting", logging.Uint64("seed", sessionSeed), logging.Int("bodies", registry.Len()))

	game := viewer.New(registry, logger,
		navigation.WithRand(orbit.SeededRand(sessionSeed)),
		navigation.WithTieBreak(policy),
	)
	ebiten.SetWindowSize(viewer.ScreenWidth, viewer.ScreenHeight)
	ebiten.SetWindowTitle("Starfolio Navigator")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	if err := ebiten.RunGame(game); err != nil {
		logger.Error("viewer stopped", logging.Error(err))
		os.Exit(3)
	}
}

func buildRegistry(seed uint64, recording string) (*orbit.Registry, uint64, error) {
	catalogue := orbit.SolarSystem()
	if recording != "" {
		header, err := replay.ReadHeader(replay.HeaderPath(recording))
		if err != nil {
			return nil, 0, err
		}
		phases := make([]float64, len(catalogue.Bodies))
		for idx, body := range catalogue.Bodies {
			phases[idx] = header.Phases[body.ID]
		}
		registry, err := orbit.NewRegistryWithPhases(catalogue, phases)
		return registry, header.SessionSeed, err
	}
	if seed == 0 {
		seed = rand.Uint64() | 1
	}
	registry, err := orbit.NewRegistry(catalogue, orbit.SeededRand(seed))
	return registry, seed, err
}
