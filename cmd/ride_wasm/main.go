//go:build js && wasm

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"syscall/js"

	"github.com/lucasjlepore/ridestats"
	"github.com/lucasjlepore/ridestats/ingest"
)

func main() {
	js.Global().Set("summarizeActivity", js.FuncOf(summarizeActivity))
	select {}
}

func summarizeActivity(_ js.Value, args []js.Value) any {
	if len(args) < 2 {
		return failure("expected arguments: fileBytes(Uint8Array), options(object)")
	}
	fileArg := args[0]
	optsArg := args[1]
	if fileArg.IsUndefined() || fileArg.IsNull() || fileArg.Get("length").Int() == 0 {
		return failure("file bytes are required")
	}

	fileBytes := make([]byte, fileArg.Get("length").Int())
	if n := js.CopyBytesToGo(fileBytes, fileArg); n == 0 {
		return failure("failed to read file bytes from JS input")
	}

	name := getString(optsArg, "source_file_name", "input.fit")
	rec, err := ingest.Decode(name, fileBytes)
	if err != nil {
		return failure(err.Error())
	}
	zones := getInts(optsArg, "zones")
	summary := ridestats.Summarize(rec.Samples, ridestats.SummaryOptions{
		ProfileSamples: getInt(optsArg, "profile_samples", ridestats.DefaultProfileSamples),
		Zones:          zones,
		Laps:           rec.Laps,
	})
	curve := ridestats.ComputeCurve(rec.Samples)

	summaryJSON, err := json.Marshal(map[string]any{
		"summary":     summary,
		"power_curve": curve,
	})
	if err != nil {
		return failure(fmt.Sprintf("encode summary: %v", err))
	}
	var text bytes.Buffer
	if err := ridestats.FormatSummary(&text, rec.Name, summary, curve, zones); err != nil {
		return failure(fmt.Sprintf("render summary: %v", err))
	}

	activityType := "ride"
	if rec.Format == ingest.FormatGPX {
		activityType = "route"
	}
	return map[string]any{
		"ok":            true,
		"name":          rec.Name,
		"activity_type": activityType,
		"summary":       string(summaryJSON),
		"text":          text.String(),
	}
}

func failure(msg string) map[string]any {
	return map[string]any{"ok": false, "error": msg}
}

func getString(v js.Value, key, fallback string) string {
	if v.IsUndefined() || v.IsNull() {
		return fallback
	}
	out := v.Get(key)
	if out.IsUndefined() || out.IsNull() {
		return fallback
	}
	s := out.String()
	if s == "" || s == "undefined" || s == "null" {
		return fallback
	}
	return s
}

func getInt(v js.Value, key string, fallback int) int {
	if v.IsUndefined() || v.IsNull() {
		return fallback
	}
	out := v.Get(key)
	if out.Type() != js.TypeNumber {
		return fallback
	}
	return out.Int()
}

func getInts(v js.Value, key string) []int {
	if v.IsUndefined() || v.IsNull() {
		return nil
	}
	arr := v.Get(key)
	if arr.IsUndefined() || arr.IsNull() || !arr.InstanceOf(js.Global().Get("Array")) {
		return nil
	}
	out := make([]int, 0, arr.Length())
	for i := 0; i < arr.Length(); i++ {
		if el := arr.Index(i); el.Type() == js.TypeNumber {
			out = append(out, el.Int())
		}
	}
	return out
}
