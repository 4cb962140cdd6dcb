package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/forestrie/go-mountainrange/hashing"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

var (
	appendFrom     string
	appendPath     string
	appendHashData bool
)

func init() {
	appendCmd.Flags().StringVarP(&appendFrom, "from", "f", "", "json file holding the values")
	appendCmd.Flags().StringVarP(&appendPath, "path", "p", "@this", "gjson path selecting the values, for example leaves.#.hash")
	appendCmd.Flags().BoolVar(&appendHashData, "hash-data", false, "hash each selected value to make the leaf, rather than decoding it as hex")
}

// appendCmd appends values read from a json document directly to the
// configured store. Nothing may be serving the same store.
var appendCmd = &cobra.Command{
	Use:   "append",
	Short: "Append leaves from a json document to the configured store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if appendFrom == "" {
			return fmt.Errorf("--from is required")
		}
		data, err := os.ReadFile(appendFrom)
		if err != nil {
			return err
		}
		if !gjson.ValidBytes(data) {
			return fmt.Errorf("%s is not valid json", appendFrom)
		}

		log := newLogger(cfg)
		defer logger.OnExit()

		store, hasher, err := openStore(log, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		values, err := selectLeaves(gjson.GetBytes(data, appendPath), hasher, appendHashData)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, v := range values {
			res, err := store.Append(cmd.Context(), v)
			if err != nil {
				return err
			}
			if err := enc.Encode(map[string]any{
				"elementIndex":  res.ElementIndex,
				"elementsCount": res.ElementsCount,
				"root":          hex.EncodeToString(res.Root),
			}); err != nil {
				return err
			}
		}
		return nil
	},
}

// selectLeaves turns the selected json, a single value or an array of them,
// into leaf values.
func selectLeaves(selected gjson.Result, hasher *hashing.Hasher, hashData bool) ([][]byte, error) {
	if !selected.Exists() {
		return nil, fmt.Errorf("path selected nothing")
	}
	items := []gjson.Result{selected}
	if selected.IsArray() {
		items = selected.Array()
	}

	leaves := make([][]byte, 0, len(items))
	for i, item := range items {
		if hashData {
			// objects and arrays are hashed as their raw json
			raw := item.String()
			if item.IsObject() || item.IsArray() {
				raw = item.Raw
			}
			leaves = append(leaves, hasher.Sum([]byte(raw)))
			continue
		}
		v, err := hex.DecodeString(item.String())
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		if len(v) != hasher.Size() {
			return nil, fmt.Errorf("value %d has %d bytes, the %s hash needs %d", i, len(v), hasher.Type(), hasher.Size())
		}
		leaves = append(leaves, v)
	}
	return leaves, nil
}
