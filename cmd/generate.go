/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/valpere/flowsketch/internal"
	"github.com/valpere/flowsketch/internal/diagram"
	"github.com/valpere/flowsketch/internal/llm"
	"github.com/valpere/flowsketch/internal/loop"
	"github.com/valpere/flowsketch/internal/renderer"
	"github.com/valpere/flowsketch/internal/store"
	"github.com/valpere/flowsketch/internal/validator"
)

var (
	modelName     string
	baseURL       string
	temperature   float64
	maxIterations int
	callTimeout   time.Duration

	minNodes int
	minEdges int

	outputFile string
	noRender   bool

	dbPath    string
	noHistory bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <description>",
	Short: "Generate a validated flowchart from a description",
	Long: `Generate a Mermaid flowchart from a natural-language or code description.

The candidate is validated locally (syntax, minimum nodes and edges); rejected
candidates are regenerated with the defect feedback folded into the next prompt,
up to --max-iterations attempts. When the budget runs out the last candidate is
returned best-effort with a warning.

The final Mermaid source goes to stdout; a self-contained HTML page rendering
it is written next to the working directory unless --no-render is given.

The OpenAI API key is read from the OPENAI_API_KEY environment variable.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := args[0]
		ctx := context.Background()

		apiKey := viper.GetString("api-key")
		if apiKey == "" {
			return &diagram.ConfigError{Reason: "OPENAI_API_KEY is not set"}
		}
		if !cmd.Flags().Changed("model") {
			if m := viper.GetString("model"); m != "" {
				modelName = m
			}
		}

		var db *store.Store
		if !noHistory && dbPath != "" {
			var err error
			db, err = store.New(dbPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			if cached, found, cacheErr := db.GetCachedDiagram(ctx, input, modelName); cacheErr == nil && found {
				fmt.Fprintf(os.Stderr, "Using cached diagram\n")
				return emit(cached)
			}
		}

		client, err := llm.NewOpenAIClient(llm.Config{
			APIKey:      apiKey,
			Model:       modelName,
			BaseURL:     baseURL,
			Temperature: temperature,
		})
		if err != nil {
			return err
		}

		l := loop.New(client, validator.New(minNodes, minEdges), loop.Config{
			MaxIterations: maxIterations,
			Timeout:       callTimeout,
			Progress:      os.Stderr,
		})

		result, err := l.Run(ctx, input)
		if err != nil {
			return err
		}

		if db != nil {
			reqID := uuid.New().String()
			_ = db.SaveRequest(ctx, internal.GenerationRequest{
				ID:        reqID,
				Input:     input,
				Model:     modelName,
				Timestamp: time.Now(),
			})
			for _, a := range result.Attempts {
				_ = db.SaveAttempt(ctx, reqID, a)
			}
			if result.Accepted {
				_ = db.SaveAccepted(ctx, input, modelName, result.Source, len(result.Attempts))
			}
		}

		if result.State == diagram.StateExhausted {
			last := result.Attempts[len(result.Attempts)-1]
			fmt.Fprintf(os.Stderr, "warning: iteration budget exhausted after %d attempts; returning best-effort diagram that failed validation (%s: %s)\n",
				len(result.Attempts), last.Defect, last.Feedback)
		}

		return emit(result.Source)
	},
}

// emit prints the Mermaid source to stdout and writes the rendered HTML page.
// The source is printed first so a failed write never loses the diagram.
func emit(source string) error {
	fmt.Println(source)

	if noRender {
		return nil
	}
	if dir := filepath.Dir(outputFile); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return &diagram.IOError{Path: outputFile, Err: err}
		}
	}
	if err := renderer.WriteFile(outputFile, source); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "HTML output saved to: %s\n", outputFile)
	return nil
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&modelName, "model", "m", "gpt-4o-mini", "OpenAI-compatible chat model to use")
	generateCmd.Flags().StringVar(&baseURL, "base-url", "", "Override the API base URL")
	generateCmd.Flags().Float64Var(&temperature, "temperature", 0.2, "Sampling temperature for the language model")
	generateCmd.Flags().IntVar(&maxIterations, "max-iterations", loop.DefaultMaxIterations, "Maximum generation attempts before returning the latest draft (values below 1 still attempt once)")
	generateCmd.Flags().DurationVar(&callTimeout, "timeout", loop.DefaultTimeout, "Per-call timeout for model requests")

	generateCmd.Flags().IntVar(&minNodes, "min-nodes", validator.DefaultMinNodes, "Minimum distinct nodes an accepted diagram must have")
	generateCmd.Flags().IntVar(&minEdges, "min-edges", validator.DefaultMinEdges, "Minimum edges an accepted diagram must have")

	generateCmd.Flags().StringVarP(&outputFile, "output", "o", "flowchart_output.html", "Where to save the rendered flowchart HTML")
	generateCmd.Flags().BoolVar(&noRender, "no-render", false, "Disable HTML rendering and only print Mermaid source")

	generateCmd.Flags().StringVar(&dbPath, "db", "./data/flowsketch.db", "Database path for generation history")
	generateCmd.Flags().BoolVar(&noHistory, "no-history", false, "Disable the generation history and accepted-diagram cache")

	viper.BindEnv("api-key", "OPENAI_API_KEY")
	viper.BindEnv("model", "FLOWSKETCH_MODEL")
}
