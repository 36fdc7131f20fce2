//go:build rp2040

// Command clickfw runs on a Pico click shield: it opens the clicks of the
// built-in pico-mikrobus board, probes them and prints readings on the
// console forever.
package main

import (
	"context"
	"runtime"
	"time"

	"clickboards/board"
	"clickboards/config"
	"clickboards/errcode"
	"clickboards/platform/rp2"
	"clickboards/x/conv"
)

const (
	bootDelay    = 3 * time.Second
	readInterval = 2 * time.Second
	readTimeout  = 5 * time.Second
)

var _ board.Buses = (*rp2.Platform)(nil)

func main() {
	time.Sleep(bootDelay)
	ctx := context.Background()

	println("[main] loading board pico-mikrobus …")
	b, err := config.Embedded("pico-mikrobus")
	if err != nil {
		println("[main] board:", err.Error())
		return
	}
	plat := rp2.New(rp2.PicoMikroBUS)
	defer plat.Close()

	devs, err := board.OpenAll(plat, b)
	for _, e := range errcode.Errors(err) {
		println("[main] open:", e.Error())
	}

	live := devs[:0]
	for _, d := range devs {
		pctx, cancel := context.WithTimeout(ctx, readTimeout)
		err := d.Probe(pctx)
		cancel()
		if err != nil {
			println("[main] probe", d.ID(), "failed:", string(errcode.Of(err)), err.Error())
			continue
		}
		println("[main] probe", d.ID(), "ok")
		live = append(live, d)
	}

	line := make([]byte, 0, 256)
	for {
		for _, d := range live {
			line = append(line[:0], "[click] "...)
			line = append(line, d.ID()...)
			rctx, cancel := context.WithTimeout(ctx, readTimeout)
			err := d.Read(rctx, func(key string, v any) {
				line = append(line, ' ')
				line = append(line, key...)
				line = append(line, '=')
				line = appendValue(line, v)
			})
			cancel()
			if err != nil {
				line = append(line, " error="...)
				line = append(line, string(errcode.Of(err))...)
			}
			println(string(line))
		}
		printMem()
		time.Sleep(readInterval)
	}
}

// appendValue formats the value kinds board devices emit without fmt.
func appendValue(dst []byte, v any) []byte {
	switch x := v.(type) {
	case string:
		return append(dst, x...)
	case bool:
		if x {
			return append(dst, "true"...)
		}
		return append(dst, "false"...)
	case int:
		return conv.AppendInt(dst, int64(x))
	case int32:
		return conv.AppendInt(dst, int64(x))
	case uint8:
		return conv.AppendUint(dst, uint64(x))
	case uint16:
		return conv.AppendUint(dst, uint64(x))
	case uint32:
		return conv.AppendUint(dst, uint64(x))
	}
	return append(dst, '?')
}

// printMem prints a compact snapshot of TinyGo runtime memory stats.
func printMem() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	println(
		"[mem]",
		"alloc:", uint32(ms.Alloc),
		"heapInuse:", uint32(ms.HeapInuse),
		"mallocs:", uint32(ms.Mallocs),
		"frees:", uint32(ms.Frees),
	)
}
