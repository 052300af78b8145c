package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// runCLI executes the root command with args and returns its output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// Persistent flags keep their values between executions.
	configPath = ""
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--cells", "24"}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeScript(t *testing.T, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.lisp")
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCLITree(t *testing.T) {
	out, err := runCLI(t, "tree", "examples/scene.lisp")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"#0 scene\n", "  #2 stack\n", "    #20 slab-at\n", "      #11 slab\n", "  #4 blob-at\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("tree output missing %q:\n%s", want, out)
		}
	}
}

func TestCLIParams(t *testing.T) {
	out, err := runCLI(t, "params", "examples/scene.lisp")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"#12 ball", "radius", "#13 blob", "threshold"} {
		if !strings.Contains(out, want) {
			t.Errorf("params output missing %q", want)
		}
	}
	// Only bounded parameters print a range.
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "radius":
			if !strings.Contains(line, "[") {
				t.Errorf("radius line has no range: %q", line)
			}
		case "color":
			if strings.Contains(line, "[") {
				t.Errorf("color line has a range: %q", line)
			}
		}
	}
}

func TestCLIBake(t *testing.T) {
	script := writeScript(t, `(sphere :radius 1)`)
	out, err := runCLI(t, "bake", "--res", "8", script)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "grid 8x8x8") {
		t.Errorf("bake output = %q", out)
	}
	if !strings.Contains(out, "voxels inside") {
		t.Errorf("bake output = %q", out)
	}
}

func TestCLISet(t *testing.T) {
	script := writeScript(t, `(sphere :id 3 :radius 1)`)
	out, err := runCLI(t, "set", script, "3", "radius", "0.5")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "re-baked") || strings.Contains(out, "re-baked 0 ") {
		t.Errorf("set output = %q", out)
	}

	if _, err := runCLI(t, "set", script, "3", "radius", "-1"); err == nil {
		t.Error("expected an out-of-range value to fail")
	}
	if _, err := runCLI(t, "set", script, "x", "radius", "1"); err == nil {
		t.Error("expected a malformed id to fail")
	}
}

func TestCLINormal(t *testing.T) {
	script := writeScript(t, `(plane :offset 1)`)
	out, err := runCLI(t, "normal", script, "0", "3", "0")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "distance 2 ") {
		t.Errorf("normal output = %q", out)
	}
	if _, err := runCLI(t, "normal", script, "0", "up", "0"); err == nil {
		t.Error("expected a malformed coordinate to fail")
	}
}

func TestCLIMesh(t *testing.T) {
	script := writeScript(t, `(box :size 1)`)
	stl := filepath.Join(t.TempDir(), "box.stl")
	out, err := runCLI(t, "mesh", "-o", stl, script)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "wrote") {
		t.Errorf("mesh output = %q", out)
	}
	info, err := os.Stat(stl)
	if err != nil {
		t.Fatal(err)
	}
	// 80-byte header plus a triangle count.
	if info.Size() <= 84 {
		t.Errorf("STL file is only %d bytes", info.Size())
	}
}

func TestCLIErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing script", []string{"tree", "no-such-file.lisp"}},
		{"eval error", []string{"tree", writeScript(t, `(sphere :radius`)}},
		{"bad config", []string{"--config", "no-such-config.yaml", "tree", "examples/scene.lisp"}},
		{"wrong arg count", []string{"normal", "examples/scene.lisp", "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCLI(t, tt.args...); err == nil {
				t.Errorf("%v: expected an error", tt.args)
			}
		})
	}
}

func TestResultError(t *testing.T) {
	err := resultError("s.lisp", EvalResult{Errors: []EvalErrorData{
		{Line: 3, Message: "bad"},
		{Message: "worse"},
	}})
	if err == nil {
		t.Fatal("expected an error")
	}
	if want := "s.lisp:3: bad\ns.lisp: worse"; err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
	if resultError("s.lisp", newResult()) != nil {
		t.Error("empty result should not be an error")
	}
}
