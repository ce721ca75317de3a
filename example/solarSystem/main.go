package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/akmonengine/scenegraph"
	"github.com/go-gl/mathgl/mgl64"
)

// SetupScene builds sun → earth → moon, each orbit driven by its parent's rotation
func SetupScene(config scenegraph.Config) (*scenegraph.Graph, *scenegraph.Node, *scenegraph.Node, *scenegraph.Node, error) {
	graph, err := scenegraph.NewGraph(config, slog.Default())
	if err != nil {
		return nil, nil, nil, nil, err
	}

	sun := graph.NewNode("sun")
	sun.Scale = mgl64.Vec3{4, 4, 4}

	// orbit radius is expressed in the sun's scaled space
	earth := graph.NewNode("earth")
	earth.Position = mgl64.Vec3{2.5, 0, 0}
	earth.Scale = mgl64.Vec3{0.25, 0.25, 0.25}

	moon := graph.NewNode("moon")
	moon.Position = mgl64.Vec3{3, 0, 0}
	moon.Scale = mgl64.Vec3{0.3, 0.3, 0.3}

	if err := graph.Attach(sun, earth); err != nil {
		return nil, nil, nil, nil, err
	}
	if err := graph.Attach(earth, moon); err != nil {
		return nil, nil, nil, nil, err
	}

	return graph, sun, earth, moon, nil
}

func main() {
	configPath := flag.String("config", "", "YAML scene graph config")
	frames := flag.Int("frames", 12, "number of frames to simulate")
	flag.Parse()

	config := scenegraph.DefaultConfig()
	if *configPath != "" {
		var err error
		if config, err = scenegraph.LoadConfig(*configPath); err != nil {
			slog.Error("failed to load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
	}

	graph, sun, earth, moon, err := SetupScene(config)
	if err != nil {
		slog.Error("failed to build scene", "error", err)
		os.Exit(1)
	}

	graph.Events.Subscribe(scenegraph.ON_WORLD_UPDATE, func(event scenegraph.Event) {
		e := event.(scenegraph.WorldUpdateEvent)
		slog.Debug("world pass", "root", e.Root.Name, "recomputed", e.Recomputed)
	})

	const dt float64 = 1.0 / 12.0
	up := mgl64.Vec3{0, 1, 0}

	for frame := 0; frame < *frames; frame++ {
		elapsed := float64(frame) * dt

		sun.Rotation = mgl64.QuatRotate(elapsed*2*math.Pi/12, up)
		earth.Rotation = mgl64.QuatRotate(elapsed*2*math.Pi, up)

		graph.Update()

		fmt.Printf("--- FRAME %d ---\n", frame+1)
		fmt.Printf("  Earth: %v\n", earth.WorldPosition())
		fmt.Printf("  Moon:  %v\n", moon.WorldPosition())
	}

	bounds := graph.Bounds()
	fmt.Printf("Bounds: min=%v max=%v\n", bounds.Min, bounds.Max)
}
