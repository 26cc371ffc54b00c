// Command interceptor runs the rig control loop: detector frames in,
// mission state, guidance vectors, and gimbal actuation out.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kestrel-uas/kestrel/internal/config"
	"github.com/kestrel-uas/kestrel/internal/detect"
	"github.com/kestrel-uas/kestrel/internal/gimbal"
	"github.com/kestrel-uas/kestrel/internal/maneuver"
	"github.com/kestrel-uas/kestrel/internal/pipeline"
	"github.com/kestrel-uas/kestrel/internal/timeutil"
)

var (
	devMode    = flag.Bool("dev", false, "Run in dev mode with a scripted frame source and simulated servos")
	configPath = flag.String("config", "", "Path to a tuning config JSON file (defaults apply when empty)")
	servoPort  = flag.String("servo-port", "/dev/ttyACM0", "Serial port of the servo board")
	servoBaud  = flag.Int("servo-baud", 9600, "Baud rate of the servo board")
)

func main() {
	flag.Parse()

	tc := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		tc, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	var actuator gimbal.Actuator
	if *devMode {
		actuator = gimbal.NewSimActuator()
	} else {
		var err error
		actuator, err = gimbal.OpenSerialActuator(*servoPort, *servoBaud)
		if err != nil {
			log.Fatalf("failed to open servo board: %v", err)
		}
	}
	defer actuator.Close()

	clock := timeutil.RealClock{}
	engine := pipeline.NewEngine(tc, clock, actuator)

	// Arena zones arrive from the competition server in production; dev
	// mode plants one of each type for exercising avoidance.
	if *devMode {
		engine.Zones().AddZone("ad-1", maneuver.ZoneAirDefense, r3.Vec{X: 120, Y: 80}, 25)
		engine.Zones().AddZone("jam-1", maneuver.ZoneSignalJamming, r3.Vec{X: -60, Y: 140}, 30)
		engine.Zones().ActivateZone("ad-1")
		engine.Zones().ActivateZone("jam-1")
	}

	var source detect.Source
	if *devMode {
		source = devSource()
	} else {
		log.Fatal("no detector adapter configured; run with -dev for the scripted source")
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine.Servo().Start()
	defer engine.Servo().Stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		interval := time.Duration(float64(time.Second) / tc.GetFrameRate())
		ticker := clock.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Print("frame loop terminated")
				return
			case <-ticker.C():
				frame, ok := source.Next()
				if !ok {
					log.Print("frame source exhausted")
					stop()
					return
				}
				res := engine.ProcessFrame(pipeline.FrameInput{
					Frame:    frame,
					Position: r3.Vec{Z: 60},
				})
				if res.Lock.IsLocked {
					log.Printf("locked on %s for %s", res.Lock.UAVLabel, res.Lock.LockDuration)
				}
			}
		}
	}()

	wg.Wait()

	stats := engine.Stats()
	log.Printf("processed %d frames, %d locks, %.1f%% lock success",
		stats.TotalFrames, stats.SuccessfulLocks, stats.LockSuccessRate)
	for id, st := range engine.UAVStats() {
		log.Printf("track %d (%s): %d frames, %s locked", id, st.Label, st.TrackedFrames, st.TotalLockTime)
	}
	log.Print("shutdown complete")
}

// devSource scripts a target drifting through the lock zone, for running
// the loop without detector hardware.
func devSource() detect.Source {
	var frames []detect.Frame
	for i := 0; i < 600; i++ {
		x := 300 + float64(i)
		frames = append(frames, detect.Frame{
			Detections: []detect.Detection{{
				X1: x, Y1: 340, X2: x + 40, Y2: 380,
				Confidence: 0.9, ClassLabel: "uav",
			}},
		})
	}
	return detect.NewScriptedSource(frames)
}
