package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/NublyBR/go-bincode"
)

type rootOptions struct {
	config     *bincode.Config
	configFile string
	verbose    bool
}

func newRootCommand(in io.Reader, out io.Writer) *cobra.Command {
	opts := &rootOptions{config: bincode.NewConfig()}

	root := &cobra.Command{
		Use:           "bincode",
		Short:         "Encode JSON documents with a configurable bincode layout",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd.Flags())
		},
	}

	flags := root.PersistentFlags()
	opts.config.BindFlags(flags)
	flags.StringVar(&opts.configFile, "config", "", "YAML configuration file, overridden by explicit flags")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log diagnostics to stderr")

	root.AddCommand(
		newEncodeCommand(opts, in, out),
		newSizeCommand(opts, in, out),
		newConfigCommand(opts, out),
	)

	return root
}

// load applies the configuration file, then re-applies every flag given on
// the command line so flags win over the file.
func (o *rootOptions) load(fs *pflag.FlagSet) error {
	if o.configFile != "" {
		f, err := os.Open(o.configFile)
		if err != nil {
			return err
		}
		defer f.Close()

		config, err := bincode.LoadConfig(f)
		if err != nil {
			return fmt.Errorf("load %s: %w", o.configFile, err)
		}

		overrides := pflag.NewFlagSet("overrides", pflag.ContinueOnError)
		config.BindFlags(overrides)

		var setErr error
		fs.Visit(func(f *pflag.Flag) {
			if overrides.Lookup(f.Name) == nil || setErr != nil {
				return
			}
			setErr = overrides.Set(f.Name, f.Value.String())
		})
		if setErr != nil {
			return setErr
		}

		o.config = config
	}

	if o.verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		o.config.WithLogger(logger)
	}

	return nil
}

// readDocument decodes one JSON document. Numbers become float64 and
// objects become maps, which are encoded with sorted keys.
func readDocument(in io.Reader) (any, error) {
	var doc any

	if err := json.NewDecoder(in).Decode(&doc); err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}

	return doc, nil
}

func newEncodeCommand(opts *rootOptions, in io.Reader, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "encode",
		Short: "Encode a JSON document from stdin and print it as hex",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			doc, err := readDocument(in)
			if err != nil {
				return err
			}

			encoded, err := opts.config.Serialize(doc)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(out, hex.EncodeToString(encoded))
			return err
		},
	}
}

func newSizeCommand(opts *rootOptions, in io.Reader, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "size",
		Short: "Print the encoded size of a JSON document from stdin",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			doc, err := readDocument(in)
			if err != nil {
				return err
			}

			size, err := opts.config.SerializedSize(doc)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(out, size)
			return err
		},
	}
}

func newConfigCommand(opts *rootOptions, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			enc := yaml.NewEncoder(out)
			defer enc.Close()

			return enc.Encode(opts.config)
		},
	}
}
