package maincmd_test

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/mna/mainer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BUAA-SE-Compiling/natrium/internal/filetest"
	"github.com/BUAA-SE-Compiling/natrium/internal/maincmd"
)

var testUpdateCLITests = flag.Bool("test.update-cli-tests", false, "If set, replace expected CLI test results with actual results.")

func TestRunFile(t *testing.T) {
	srcDir, resultDir := filepath.Join("testdata", "in"), filepath.Join("testdata", "out")

	for _, fi := range filetest.SourceFiles(t, srcDir, ".s0asm") {
		t.Run(fi.Name(), func(t *testing.T) {
			var buf, ebuf bytes.Buffer
			stdio := mainer.Stdio{Stdout: &buf, Stderr: &ebuf}

			_ = maincmd.RunFile(context.Background(), stdio, filepath.Join(srcDir, fi.Name()))
			filetest.DiffOutput(t, fi, buf.String(), resultDir, testUpdateCLITests)
			assert.Empty(t, ebuf.String())
		})
	}
}

func TestAsmFile(t *testing.T) {
	srcDir, resultDir := filepath.Join("testdata", "in"), filepath.Join("testdata", "out")

	for _, fi := range filetest.SourceFiles(t, srcDir, ".s0asm") {
		t.Run(fi.Name(), func(t *testing.T) {
			var buf, ebuf bytes.Buffer
			stdio := mainer.Stdio{Stdout: &buf, Stderr: &ebuf}

			require.NoError(t, maincmd.AsmFile(stdio, filepath.Join(srcDir, fi.Name()), ""))
			filetest.DiffCustom(t, fi, "dasm", ".dasm.want", buf.String(), resultDir, testUpdateCLITests)
		})
	}
}

func TestCompileFileRoundTripsThroughDisasm(t *testing.T) {
	var compileOut, disasmOut, ebuf bytes.Buffer
	compileStdio := mainer.Stdio{Stdout: &compileOut, Stderr: &ebuf}

	require.NoError(t, maincmd.CompileFile(compileStdio, filepath.Join("testdata", "in", "arith.s0asm"), ""))

	tmp := filepath.Join(t.TempDir(), "arith.s0")
	require.NoError(t, os.WriteFile(tmp, compileOut.Bytes(), 0644))

	disasmStdio := mainer.Stdio{Stdout: &disasmOut, Stderr: &ebuf}
	require.NoError(t, maincmd.DisasmFile(disasmStdio, tmp, ""))

	want, err := os.ReadFile(filepath.Join("testdata", "out", "arith.s0asm.dasm.want"))
	require.NoError(t, err)
	assert.Equal(t, string(want), disasmOut.String())
}
