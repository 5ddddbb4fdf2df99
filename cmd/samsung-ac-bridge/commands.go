package main

import (
	"encoding/hex"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"samsung-ac-bridge/internal/protocol"
	"samsung-ac-bridge/internal/samsung"
)

var decodeProtocol string

func newDecodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode <hex>",
		Short: "Decode a captured bus frame",
		Long: `Decode one frame captured from the bus, for example from the raw debug mirror.
Spaces and colons in the hex string are ignored.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runDecode,
	}
	cmd.Flags().StringVar(&decodeProtocol, "protocol", "auto", "protocol variant: auto, nasa or non_nasa")
	return cmd
}

func parseHex(args []string) ([]byte, error) {
	s := strings.Join(args, "")
	s = strings.NewReplacer(" ", "", ":", "", "0x", "").Replace(strings.ToLower(s))
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return data, nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	frame, err := parseHex(args)
	if err != nil {
		return err
	}
	variant, err := protocol.ParseVariant(decodeProtocol)
	if err != nil {
		return err
	}

	summary, err := protocol.Inspect(frame)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	printf(cmd, "%s\n", summary)

	msgs, err := protocol.NewCodec(variant).Decode(frame)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if len(msgs) == 0 {
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tID\tNAME\tRAW")
	for _, m := range msgs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", m.Source, m.Number, m.Number.Name(), m.Raw)
	}
	return w.Flush()
}

func newRolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "List the entity roles that can be configured per device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tKIND\tMESSAGE\tUNIT\tRANGE/OPTIONS")
			for _, role := range samsung.Roles() {
				def, ok := role.Def()
				if !ok {
					continue
				}
				msg := "-"
				if def.MessageID != 0 {
					msg = def.MessageID.String()
				}
				extra := ""
				switch {
				case def.Range != nil:
					extra = fmt.Sprintf("%g..%g step %g", def.Range.Min, def.Range.Max, def.Range.Step)
				case def.Vocabulary != nil:
					extra = strings.Join(def.Vocabulary.Options(), ", ")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", def.Key, def.Kind, msg, def.Unit, extra)
			}
			return w.Flush()
		},
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [config.yaml]",
		Short: "Validate a configuration file and print it with secrets redacted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "config.yaml"
			if len(args) > 0 {
				path = args[0]
			}
			cfg, err := loadConfig(path)
			if err != nil {
				return err
			}
			if err := cfg.validate(); err != nil {
				return err
			}
			specs, err := cfg.deviceSpecs()
			if err != nil {
				return err
			}
			if _, err := samsung.BuildRegistry(specs, func(*samsung.Device, samsung.Binding) samsung.Handle { return nil }); err != nil {
				return err
			}
			printf(cmd, "%s", cfg.String())
			printf(cmd, "# ok: %d devices\n", len(specs))
			return nil
		},
	}
}
