package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"bouquet/internal/bootstrap"
	"bouquet/internal/imagegen"
)

var (
	runSubject   string
	runObject    string
	runStyleHint string
	runJSON      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Composite the object image into the subject image",
	Long: `Run one composite and store the result under RESULT_DIR.

Both --subject and --object accept a local file path or an http(s) URL.`,
	Example: `  composite run --subject bride.jpg --object https://cdn.example.com/roses.png`,
	RunE:    runComposite,
}

func init() {
	runCmd.Flags().StringVar(&runSubject, "subject", "", "subject image (file path or URL)")
	runCmd.Flags().StringVar(&runObject, "object", "", "object image (file path or URL)")
	runCmd.Flags().StringVar(&runStyleHint, "style-hint", "", "advisory style hint recorded with the run")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the outcome as JSON")
	_ = runCmd.MarkFlagRequired("subject")
	_ = runCmd.MarkFlagRequired("object")
}

func runComposite(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	comps, err := bootstrap.Build(ctx, cfg, logger, bootstrap.Options{})
	if err != nil {
		return err
	}
	defer comps.Close()

	subject, closeSubject, err := imageSource(runSubject)
	if err != nil {
		return err
	}
	defer closeSubject()
	object, closeObject, err := imageSource(runObject)
	if err != nil {
		return err
	}
	defer closeObject()

	outcome, err := comps.Compositor.Composite(ctx, imagegen.Input{
		Subject:   subject,
		Object:    object,
		StyleHint: runStyleHint,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if runJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"id":               outcome.ID,
			"result_image_url": outcome.Artifact.URL,
			"path":             outcome.Artifact.Path,
			"model":            outcome.Model,
			"style_hint":       outcome.StyleHint,
		})
	}
	fmt.Fprintf(out, "stored %s (%d bytes)\n", outcome.Artifact.Path, outcome.Artifact.Size)
	fmt.Fprintf(out, "url    %s\n", outcome.Artifact.URL)
	return nil
}

// imageSource maps a flag value onto an ImageSource: URLs are fetched by the
// pipeline, anything else is opened as a local file.
func imageSource(ref string) (imagegen.ImageSource, func(), error) {
	ref = strings.TrimSpace(ref)
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return imagegen.ImageSource{URL: ref}, func() {}, nil
	}
	f, err := os.Open(ref)
	if err != nil {
		return imagegen.ImageSource{}, nil, fmt.Errorf("open %s: %w", ref, err)
	}
	return imagegen.ImageSource{Name: filepath.Base(ref), Reader: f}, func() { f.Close() }, nil
}
