package main

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forestrie/go-mountainrange/hashing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestSelectLeaves(t *testing.T) {
	hasher := hashing.MustNew(hashing.SHA256)
	a := sha256.Sum256([]byte("a"))
	b := sha256.Sum256([]byte("b"))

	doc := fmt.Sprintf(`{"leaves":[{"hash":"%x"},{"hash":"%x"}],"one":"%x","short":"abcd","events":[{"k":1},"text"]}`, a, b, a)

	tests := []struct {
		name     string
		path     string
		hashData bool
		want     [][]byte
		wantErr  bool
	}{
		{"array of hashes", "leaves.#.hash", false, [][]byte{a[:], b[:]}, false},
		{"single value", "one", false, [][]byte{a[:]}, false},
		{"hash raw data", "events", true, [][]byte{hasher.Sum([]byte(`{"k":1}`)), hasher.Sum([]byte("text"))}, false},
		{"wrong width", "short", false, nil, true},
		{"not hex", "events.1", false, nil, true},
		{"missing", "nothing", false, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectLeaves(gjson.Get(doc, tt.path), hasher, tt.hashData)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// TestOfflineCommands appends to a file backed store, snapshots it, checks
// the snapshot root and verifies a proof, all through the cli.
func TestOfflineCommands(t *testing.T) {
	dir := t.TempDir()
	config := writeConfig(t, fmt.Sprintf("store: {backend: file, path: %s}\n", filepath.Join(dir, "nodes")))

	var values []string
	for _, s := range []string{"A", "B", "C"} {
		sum := sha256.Sum256([]byte(s))
		values = append(values, hex.EncodeToString(sum[:]))
	}
	doc, err := json.Marshal(map[string]any{"values": values})
	require.NoError(t, err)
	docPath := filepath.Join(dir, "values.json")
	require.NoError(t, os.WriteFile(docPath, doc, 0o600))

	out, err := execute(t, "append", "-c", config, "--from", docPath, "--path", "values")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	root := gjson.Get(lines[2], "root").String()
	assert.Equal(t, int64(4), gjson.Get(lines[2], "elementsCount").Int())

	snapPath := filepath.Join(dir, "range.snap")
	_, err = execute(t, "snapshot", "-c", config, "--out", snapPath)
	require.NoError(t, err)

	out, err = execute(t, "root", "-c", config, "--snapshot", snapPath)
	require.NoError(t, err)
	assert.Equal(t, root, gjson.Get(out, "root").String())
	assert.Equal(t, int64(3), gjson.Get(out, "leavesCount").Int())

	// proof for B at position 2: sibling A, peaks [H(A,B), C]
	hasher := hashing.MustNew(hashing.SHA256)
	dec := func(s string) []byte {
		b, err := hex.DecodeString(s)
		require.NoError(t, err)
		return b
	}
	proof := map[string]any{
		"elementIndex":  2,
		"elementsCount": 4,
		"siblings":      []string{values[0]},
		"peaks": []string{
			hex.EncodeToString(hasher.HashPair(dec(values[0]), dec(values[1]))),
			values[2],
		},
	}
	proofData, err := json.Marshal(proof)
	require.NoError(t, err)
	proofPath := filepath.Join(dir, "proof.json")
	require.NoError(t, os.WriteFile(proofPath, proofData, 0o600))

	out, err = execute(t, "verify", "-c", config, "--proof", proofPath, "--value", values[1], "--root", root)
	require.NoError(t, err)
	assert.Equal(t, "true", strings.TrimSpace(out))

	_, err = execute(t, "verify", "-c", config, "--proof", proofPath, "--value", values[0], "--root", root)
	assert.Error(t, err)
}
