// Command gbdoctor runs a validation ROM headlessly and watches its serial
// output for a pass/fail marker, the way Blargg-style test ROMs report
// results on real hardware. It is scripted tooling for exercising
// internal/emu against conformance ROMs, not the player-facing front end.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/kaiolsen/gbcore/internal/emu"
)

// ringWriter keeps the last size bytes written to it, for diagnostics once a
// failure marker is seen; it always also forwards to Under.
type ringWriter struct {
	Under io.Writer
	buf   []byte
	idx   int
	fill  int
}

func newRingWriter(under io.Writer, size int) *ringWriter {
	if size < 256 {
		size = 256
	}
	return &ringWriter{Under: under, buf: make([]byte, size)}
}

func (r *ringWriter) Write(p []byte) (int, error) {
	for _, ch := range p {
		r.buf[r.idx] = ch
		r.idx = (r.idx + 1) % len(r.buf)
		if r.fill < len(r.buf) {
			r.fill++
		}
	}
	return r.Under.Write(p)
}

func (r *ringWriter) String() string {
	start := (r.idx - r.fill + len(r.buf)) % len(r.buf)
	out := make([]byte, r.fill)
	for j := 0; j < r.fill; j++ {
		out[j] = r.buf[(start+j)%len(r.buf)]
	}
	return string(out)
}

func main() {
	romPath := flag.String("rom", "", "path to ROM (.gb)")
	bootPath := flag.String("bootrom", "", "optional DMG boot ROM to run from 0x0000 until FF50 disables it")
	steps := flag.Int("steps", 5_000_000, "max CPU instructions to execute")
	trace := flag.Bool("trace", false, "print a doctor-format trace line per instruction")
	until := flag.String("until", "Passed", "stop when serial output contains this substring (case-insensitive); empty to disable")
	auto := flag.Bool("auto", false, "auto-detect 'Passed' or 'Failed N tests' in serial output and exit 0/1")
	timeout := flag.Duration("timeout", 0, "optional wall-clock timeout (e.g. 30s, 2m); 0 disables")
	serialWindow := flag.Int("serialWindow", 8192, "bytes of recent serial output retained for a failure dump")
	flag.Parse()

	if *romPath == "" {
		log.Fatal("-rom is required")
	}
	rom, err := os.ReadFile(*romPath)
	if err != nil {
		log.Fatalf("read rom: %v", err)
	}
	var boot []byte
	if *bootPath != "" {
		boot, err = os.ReadFile(*bootPath)
		if err != nil {
			log.Fatalf("read bootrom: %v", err)
		}
	}

	m := emu.New(emu.Config{})
	if err := m.LoadCartridge(rom, boot); err != nil {
		log.Fatalf("load cartridge: %v", err)
	}
	defer m.Close()

	var ser bytes.Buffer
	ring := newRingWriter(&ser, *serialWindow)
	w := io.Writer(ring)
	if *until == "" && !*auto {
		w = &ser
	}
	m.SetSerialWriter(io.MultiWriter(os.Stdout, w))

	var traceOut io.Writer
	if *trace {
		traceOut = os.Stdout
	}

	failRe := regexp.MustCompile(`(?i)failed\s+(\d+)\s+tests?`)
	stageRe := regexp.MustCompile(`\b(\d{2}:\d{2})\b`)
	lastStage := ""

	start := time.Now()
	var deadline time.Time
	if *timeout > 0 {
		deadline = start.Add(*timeout)
	}

	for i := 0; i < *steps; i++ {
		if err := m.StepOne(traceOut); err != nil {
			fmt.Printf("\nStopped: %v\n", err)
			fmt.Printf("Done: steps=%d elapsed=%s\n", i, time.Since(start).Truncate(time.Millisecond))
			os.Exit(2)
		}

		if *auto {
			s := ser.String()
			if mm := stageRe.FindAllString(s, -1); len(mm) > 0 {
				lastStage = mm[len(mm)-1]
			}
			if strings.Contains(strings.ToLower(s), "passed") {
				fmt.Printf("\nDetected PASS in serial output.\n")
				if lastStage != "" {
					fmt.Printf("Last stage seen: %s\n", lastStage)
				}
				fmt.Printf("Done: steps=%d elapsed=%s\n", i+1, time.Since(start).Truncate(time.Millisecond))
				os.Exit(0)
			}
			if mm := failRe.FindStringSubmatch(s); mm != nil {
				fmt.Printf("\nDetected %s in serial output.\n", mm[0])
				if lastStage != "" {
					fmt.Printf("Last stage seen: %s\n", lastStage)
				}
				fmt.Printf("\n--- recent serial ---\n%s\n--- end serial ---\n", ring.String())
				fmt.Printf("Done: steps=%d elapsed=%s\n", i+1, time.Since(start).Truncate(time.Millisecond))
				os.Exit(1)
			}
		} else if *until != "" {
			if strings.Contains(strings.ToLower(ser.String()), strings.ToLower(*until)) {
				fmt.Printf("\nDetected %q in serial output.\n", *until)
				fmt.Printf("Done: steps=%d elapsed=%s\n", i+1, time.Since(start).Truncate(time.Millisecond))
				return
			}
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			fmt.Printf("\nTimeout after %s.\n", time.Since(start).Truncate(time.Millisecond))
			os.Exit(2)
		}
	}
	fmt.Printf("\nDone: steps=%d elapsed=%s\n", *steps, time.Since(start).Truncate(time.Millisecond))
}
