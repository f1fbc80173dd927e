package metrics

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"
)

func TestNewAutoDimension(t *testing.T) {
	t.Setenv("STORY_SERVICE_NAME", "storyweaver-test")
	initOnce.Do(func() {}) // Reset once
	serviceName = "storyweaver-test"

	r := New("StoryWeaver")
	if r.namespace != "StoryWeaver" {
		t.Errorf("expected namespace StoryWeaver, got %s", r.namespace)
	}
	if r.dimensions["ServiceName"] != "storyweaver-test" {
		t.Errorf("expected ServiceName dimension storyweaver-test, got %s", r.dimensions["ServiceName"])
	}
}

func TestRecorderFlushOutput(t *testing.T) {
	// Capture stdout
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	serviceName = "" // Clear for test isolation

	rec := New("StoryWeaver")
	rec.Dimension("Operation", "start_story")
	rec.Metric("GenerationMs", 842.5, UnitMilliseconds)
	rec.Metric("SceneCount", 1, UnitCount)
	rec.Property("sessionId", "abc-123")
	rec.Flush()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	buf.ReadFrom(r)
	output := buf.String()

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(output), &doc); err != nil {
		t.Fatalf("failed to parse EMF output as JSON: %v\nOutput: %s", err, output)
	}

	awsDir, ok := doc["_aws"]
	if !ok {
		t.Fatal("missing _aws directive in EMF output")
	}
	awsMap, ok := awsDir.(map[string]interface{})
	if !ok {
		t.Fatal("_aws directive is not a map")
	}

	if _, ok := awsMap["Timestamp"]; !ok {
		t.Error("missing Timestamp in _aws directive")
	}

	cwMetrics, ok := awsMap["CloudWatchMetrics"]
	if !ok {
		t.Fatal("missing CloudWatchMetrics in _aws directive")
	}
	cwArr, ok := cwMetrics.([]interface{})
	if !ok || len(cwArr) == 0 {
		t.Fatal("CloudWatchMetrics should be a non-empty array")
	}

	cw := cwArr[0].(map[string]interface{})
	if cw["Namespace"] != "StoryWeaver" {
		t.Errorf("expected namespace StoryWeaver, got %v", cw["Namespace"])
	}

	if doc["Operation"] != "start_story" {
		t.Errorf("expected Operation=start_story, got %v", doc["Operation"])
	}

	if doc["GenerationMs"] != 842.5 {
		t.Errorf("expected GenerationMs=842.5, got %v", doc["GenerationMs"])
	}
	if doc["SceneCount"] != float64(1) {
		t.Errorf("expected SceneCount=1, got %v", doc["SceneCount"])
	}

	if doc["sessionId"] != "abc-123" {
		t.Errorf("expected sessionId=abc-123, got %v", doc["sessionId"])
	}
}

func TestRecorderFlushEmpty(t *testing.T) {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	rec := New("Test")
	rec.Flush() // No metrics, should produce no output

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	buf.ReadFrom(r)
	if buf.Len() != 0 {
		t.Errorf("expected no output for empty recorder, got: %s", buf.String())
	}
}

func TestRecorderCount(t *testing.T) {
	serviceName = ""
	rec := New("Test")
	rec.Count("Errors")

	if v, ok := rec.values["Errors"]; !ok || v != float64(1) {
		t.Errorf("expected Errors=1, got %v", v)
	}
	if m, ok := rec.metrics["Errors"]; !ok || m.Unit != UnitCount {
		t.Errorf("expected unit Count, got %v", m.Unit)
	}
}

func TestRecorderChaining(t *testing.T) {
	serviceName = ""
	rec := New("Test").
		Dimension("Op", "test").
		Metric("Duration", 100, UnitMilliseconds).
		Count("Calls").
		Property("id", "xyz")

	if rec.dimensions["Op"] != "test" {
		t.Error("chaining Dimension failed")
	}
	if rec.values["Duration"] != float64(100) {
		t.Error("chaining Metric failed")
	}
	if rec.values["Calls"] != float64(1) {
		t.Error("chaining Count failed")
	}
	if rec.properties["id"] != "xyz" {
		t.Error("chaining Property failed")
	}
}
