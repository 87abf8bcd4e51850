// Command docgraph runs one document build from files on disk.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docgraph/internal/config"
	"github.com/dgallion1/docgraph/internal/outline"
	"github.com/dgallion1/docgraph/internal/parser"
	"github.com/dgallion1/docgraph/internal/pipeline"
)

type inputFlags struct {
	Input    string
	Layout   string
	TOC      string
	PDF      string
	Config   string
	Strategy string
	Verbose  bool
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Input, "input", "", "Fragment document JSON")
	cmd.Flags().StringVar(&f.Layout, "layout", "", "Layout detector output JSON (instead of --input)")
	cmd.Flags().StringVar(&f.TOC, "toc", "", "Table of contents JSON, overrides the one in the input")
	cmd.Flags().StringVar(&f.PDF, "pdf", "", "Source PDF used to fill fragment text and fonts")
	cmd.Flags().StringVar(&f.Config, "config", "", "Build options YAML")
	cmd.Flags().StringVar(&f.Strategy, "strategy", "", "Hierarchy strategy: auto, fixed, dynamic or toc")
	cmd.Flags().BoolVar(&f.Verbose, "verbose", false, "Debug logging")
	cmd.MarkFlagsMutuallyExclusive("input", "layout")
	cmd.MarkFlagsOneRequired("input", "layout")
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "docgraph",
		Short:        "Document structure and cross-reference graph builder",
		SilenceUsage: true,
	}
	root.AddCommand(newBuildCmd(), newOutlineCmd())
	return root
}

func newBuildCmd() *cobra.Command {
	var flags inputFlags
	var out string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the hierarchy, edges, graph and chunks of one document",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := run(&flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := writeResult(out, res); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d nodes, %d edges, %d chunks written to %s\n",
				res.Analysis.NumNodes, res.Analysis.NumEdges, len(res.Chunks), out)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&out, "out", ".", "Output directory")
	return cmd
}

func newOutlineCmd() *cobra.Command {
	var flags inputFlags
	var format string

	cmd := &cobra.Command{
		Use:   "outline",
		Short: "Print the reconstructed hierarchy as Markdown or HTML",
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "markdown" && format != "html" {
				return fmt.Errorf("unsupported format %q", format)
			}
			res, err := run(&flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if format == "markdown" {
				_, err = io.WriteString(cmd.OutOrStdout(), outline.Markdown(res.Tree, res.Fragments))
				return err
			}
			html, err := outline.HTML(res.Tree, res.Fragments)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), html)
			return err
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&format, "format", "markdown", "Output format: markdown or html")
	return cmd
}

// run loads the inputs named by flags and builds the document.
func run(flags *inputFlags, logOut io.Writer) (*pipeline.Result, error) {
	level := slog.LevelWarn
	if flags.Verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: level}))

	cfg := config.Load()
	if err := cfg.LoadBuildFile(flags.Config); err != nil {
		return nil, err
	}
	if flags.Strategy != "" {
		cfg.Build.Strategy = flags.Strategy
	}
	opts, err := pipeline.NewOptions(cfg.Build)
	if err != nil {
		return nil, err
	}

	doc, err := loadDocument(flags, cfg.Build.MinScore, log)
	if err != nil {
		return nil, err
	}
	return pipeline.NewBuilder(opts, log).Build(pipeline.Input{
		FileID:    doc.FileID,
		Fragments: doc.Fragments,
		TOC:       doc.TOC,
	}), nil
}

func loadDocument(flags *inputFlags, minScore float64, log *slog.Logger) (*parser.Document, error) {
	var doc *parser.Document
	if flags.Layout != "" {
		f, err := os.Open(flags.Layout)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		layout, err := parser.DecodeLayout(f)
		if err != nil {
			return nil, err
		}
		var dropped int
		doc, dropped = layout.Document(parser.LayoutOptions{MinScore: minScore})
		if dropped > 0 {
			log.Info("dropped detections", "count", dropped)
		}
	} else {
		f, err := os.Open(flags.Input)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if doc, err = parser.DecodeDocument(f); err != nil {
			return nil, err
		}
	}

	if flags.TOC != "" {
		data, err := os.ReadFile(flags.TOC)
		if err != nil {
			return nil, err
		}
		var toc parser.TOC
		if err := json.Unmarshal(data, &toc); err != nil {
			return nil, fmt.Errorf("decode toc %s: %w", flags.TOC, err)
		}
		doc.TOC = toc
	}

	if flags.PDF != "" {
		frags, err := parser.EnrichFromFile(flags.PDF, doc.Fragments)
		if err != nil {
			return nil, err
		}
		doc.Fragments = frags
	}
	return doc, nil
}

// writeResult writes one JSON file per build output into dir.
func writeResult(dir string, res *pipeline.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	out := res.Output()
	files := []struct {
		name  string
		value any
	}{
		{"hierarchy.json", out.Hierarchy},
		{"references.json", out.References},
		{"title_links.json", out.TitleLinks},
		{"edges.json", out.Edges},
		{"chunks.json", out.Chunks},
		{"analysis.json", out.Analysis},
	}
	for _, f := range files {
		data, err := json.MarshalIndent(f.value, "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", f.name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, f.name), append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	return nil
}
