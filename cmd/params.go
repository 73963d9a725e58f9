package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newParamsCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "params",
		Short: "Validate detection parameters and print the effective set",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = cfg.ParamsPath
			}

			store, err := openParams(file)
			if err != nil {
				return err
			}

			out, err := yaml.Marshal(store.Current())
			if err != nil {
				return fmt.Errorf("encode params: %w", err)
			}
			_, err = os.Stdout.Write(out)
			return err
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML parameter file (default: PARAMS_PATH)")
	return cmd
}
