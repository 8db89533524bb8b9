package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/ivlev/sketch2video/internal/config"
	"github.com/ivlev/sketch2video/internal/engine"
	"github.com/ivlev/sketch2video/internal/scene"
	"github.com/ivlev/sketch2video/internal/system"
	"github.com/ivlev/sketch2video/internal/timeline"
	"github.com/ivlev/sketch2video/internal/video"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	for _, d := range []string{"input/scenes", "output"} {
		os.MkdirAll(d, 0755)
	}

	inputPtr := flag.String("input", "", "Scene JSON file (default: newest file in input/scenes/)")
	outputPtr := flag.String("output", "", "Output webm path (default: generated in output/)")
	presetPtr := flag.String("preset", "", "YAML file with export settings")
	savePresetPtr := flag.String("save-preset", "", "Write the resolved settings to this YAML file")
	fpsPtr := flag.Float64("fps", config.DefaultFrameRate, "Frame rate")
	resolutionPtr := flag.String("resolution", config.DefaultResolution.String(), "Frame size, WIDTHxHEIGHT")
	backgroundPtr := flag.String("background", config.DefaultBackgroundColor, "Background colour")
	strokeSpeedPtr := flag.Float64("stroke-speed", config.DefaultStrokeSpeed, "Freedraw speed multiplier")
	shapeSpeedPtr := flag.Float64("shape-speed", config.DefaultShapeSpeed, "Shape speed multiplier")
	workersPtr := flag.Int("workers", 0, "Frame render workers (0: sized from CPU and memory)")
	timeoutPtr := flag.Duration("timeout", config.DefaultEncodeTimeout, "Encoder timeout")
	keepRevealedPtr := flag.Bool("keep-revealed", false, "Keep finished elements on screen")
	ffmpegPtr := flag.String("ffmpeg", "ffmpeg", "ffmpeg binary")
	timelineOutPtr := flag.String("timeline-out", "", "Write the built timeline to this YAML file")
	statsPtr := flag.Bool("stats", false, "Print a performance report and append it to benchmark.log")
	logLevelPtr := flag.String("log-level", "warn", "Log level: trace, debug, info, warn, error")

	flag.Parse()

	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "sketch2video",
		Level:  hclog.LevelFromString(*logLevelPtr),
		Output: os.Stderr,
	})

	inputPath := *inputPtr
	if inputPath == "" {
		latest, err := system.FindLatestScene("input/scenes")
		if err != nil {
			log.Fatalf("[-] Error: %v. Put a scene JSON into input/scenes/", err)
		}
		inputPath = latest
		fmt.Printf("[*] Selected scene: %s\n", inputPath)
	}

	sc, err := scene.Load(inputPath)
	if err != nil {
		log.Fatalf("[-] Error: %v", err)
	}

	overrides := &config.Overrides{}
	if *presetPtr != "" {
		overrides, err = config.LoadPreset(*presetPtr)
		if err != nil {
			log.Fatalf("[-] Error: %v", err)
		}
		fmt.Printf("[*] Using preset: %s\n", *presetPtr)
	}
	overrides = overrides.Layer(flagOverrides(map[string]func(o *config.Overrides){
		"fps":          func(o *config.Overrides) { o.FrameRate = fpsPtr },
		"background":   func(o *config.Overrides) { o.BackgroundColor = backgroundPtr },
		"stroke-speed": func(o *config.Overrides) { o.StrokeSpeed = strokeSpeedPtr },
		"shape-speed":  func(o *config.Overrides) { o.ShapeSpeed = shapeSpeedPtr },
		"workers":      func(o *config.Overrides) { o.Workers = workersPtr },
		"timeout": func(o *config.Overrides) {
			d := config.Duration(*timeoutPtr)
			o.EncodeTimeout = &d
		},
		"resolution": func(o *config.Overrides) {
			res, ok := config.ParseResolution(*resolutionPtr)
			if !ok {
				fmt.Printf("[!] Bad resolution %q, using %s\n", *resolutionPtr, res)
			}
			o.Resolution = &res
		},
	}))

	settings, err := config.Resolve(overrides)
	if err != nil {
		log.Fatalf("[-] Error: %v", err)
	}
	if *savePresetPtr != "" {
		if err := config.WritePreset(settings, *savePresetPtr); err != nil {
			log.Fatalf("[-] Error: %v", err)
		}
		fmt.Printf("[*] Settings saved: %s\n", *savePresetPtr)
	}
	if *timelineOutPtr != "" {
		items := timeline.Build(sc.Elements, settings)
		if err := timeline.WriteManifest(timeline.NewManifest(items, settings), *timelineOutPtr); err != nil {
			log.Fatalf("[-] Error: %v", err)
		}
		fmt.Printf("[*] Timeline saved: %s\n", *timelineOutPtr)
	}

	finalOutput := *outputPtr
	if finalOutput == "" {
		base := filepath.Base(inputPath)
		name := strings.ReplaceAll(strings.TrimSuffix(base, filepath.Ext(base)), " ", "_")
		timestamp := time.Now().Format("2006-01-02_15-04-05")
		finalOutput = filepath.Join("output", fmt.Sprintf("animation_%s_%s.webm", name, timestamp))
	}

	fmt.Println("--- [SKETCH2VIDEO] ---")
	fmt.Printf("[*] Scene: %s | Elements: %d\n", inputPath, len(sc.Elements))
	fmt.Printf("[*] Resolution: %s @ %v FPS\n", settings.Resolution, settings.FrameRate)
	fmt.Println("----------------------")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	x := engine.NewExporter(&video.FFmpegEncoder{Binary: *ffmpegPtr, Logger: logger.Named("ffmpeg")}, logger)
	x.KeepRevealed = *keepRevealedPtr

	res, err := x.Export(ctx, sc, overrides, finalOutput)
	if err != nil {
		if engine.IsKind(err, engine.KindEncoderUnavailable) {
			fmt.Println("[!] ffmpeg with libvpx-vp9 is required, install it or pass -ffmpeg")
		}
		log.Fatalf("[-] Export failed: %v", err)
	}
	if res.Skipped > 0 {
		fmt.Printf("[!] Skipped %d elements of unknown type\n", res.Skipped)
	}

	if *statsPtr {
		fmt.Print(res.Report(version))
		if err := res.AppendBenchmark("benchmark.log", version, inputPath); err != nil {
			fmt.Printf("[!] Could not write benchmark.log: %v\n", err)
		}
	}

	fmt.Printf("[+++] Done! Result: %s\n", res.Path)
}

// flagOverrides applies the setters of the flags given on the command line.
func flagOverrides(setters map[string]func(o *config.Overrides)) *config.Overrides {
	o := &config.Overrides{}
	flag.Visit(func(f *flag.Flag) {
		if set, ok := setters[f.Name]; ok {
			set(o)
		}
	})
	return o
}
