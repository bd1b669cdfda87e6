package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewExecutionCmd создаёт группу команд для управления executions.
func NewExecutionCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "execution",
		Short: "Manage executions",
	}

	cmd.AddCommand(
		newExecutionListCmd(clientFn, outputFn),
		newExecutionStartCmd(clientFn, outputFn),
		newExecutionShowCmd(clientFn, outputFn),
		newExecutionCancelCmd(clientFn, outputFn),
		newExecutionStepsCmd(clientFn, outputFn),
		newExecutionCostsCmd(clientFn, outputFn),
	)

	return cmd
}

var executionHeaders = []string{"ID", "RECIPE_ID", "STATUS", "PROGRESS", "COST", "CREATED"}

func executionRow(e *ExecutionResponse) []string {
	return []string{
		e.ID,
		e.RecipeID,
		e.Status,
		strconv.Itoa(e.Progress) + "%",
		fmt.Sprintf("$%.4f", e.Cost),
		e.CreatedAt,
	}
}

func newExecutionListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var recipeID string
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List executions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			executions, err := client.ListExecutions(ListExecutionsOpts{
				RecipeID: recipeID,
				Status:   status,
				Limit:    limit,
			})
			if err != nil {
				return err
			}

			rows := make([][]string, len(executions))
			for i := range executions {
				rows[i] = executionRow(&executions[i])
			}

			out.Print(executionHeaders, rows, executions)
			return nil
		},
	}

	cmd.Flags().StringVar(&recipeID, "recipe-id", "", "Filter by recipe ID")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, RUNNING, DONE, ERROR, CANCELLED)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newExecutionStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var text string
	var transcript string
	var audioKey string
	var audioURL string
	var imageKey string

	cmd := &cobra.Command{
		Use:   "start RECIPE_ID",
		Short: "Start a new execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			input := map[string]any{}
			if text != "" {
				input["text"] = text
			}
			if transcript != "" {
				input["transcript_text"] = transcript
			}
			if audioKey != "" {
				input["audio_key"] = audioKey
			}
			if audioURL != "" {
				input["audio_url"] = audioURL
			}
			if imageKey != "" {
				input["image_key"] = imageKey
			}

			ex, err := client.CreateExecution(args[0], CreateExecutionRequest{Input: input})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Execution started: %s", ex.ID))
			out.Print(executionHeaders, [][]string{executionRow(ex)}, ex)
			return nil
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Input text (topic or brief)")
	cmd.Flags().StringVar(&transcript, "transcript", "", "Pre-transcribed input text")
	cmd.Flags().StringVar(&audioKey, "audio-key", "", "Audio object key in storage")
	cmd.Flags().StringVar(&audioURL, "audio-url", "", "External audio URL")
	cmd.Flags().StringVar(&imageKey, "image-key", "", "Image object key in storage")

	return cmd
}

func newExecutionShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show execution details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			ex, err := client.GetExecution(args[0])
			if err != nil {
				return err
			}

			headers := []string{"ID", "RECIPE_ID", "STATUS", "PROGRESS", "COST", "ERROR", "CREATED"}
			out.Print(headers, [][]string{{
				ex.ID,
				ex.RecipeID,
				ex.Status,
				strconv.Itoa(ex.Progress) + "%",
				fmt.Sprintf("$%.4f", ex.Cost),
				ex.Error,
				ex.CreatedAt,
			}}, ex)
			return nil
		},
	}
}

func newExecutionCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel an execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			ex, err := client.CancelExecution(args[0])
			if err != nil {
				return err
			}

			if ex.Status == "CANCELLED" {
				out.Success(fmt.Sprintf("Execution cancelled: %s", ex.ID))
			} else {
				out.Success(fmt.Sprintf("Cancellation requested: %s (takes effect at the next step boundary)", ex.ID))
			}
			return nil
		},
	}
}

func newExecutionStepsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "steps EXECUTION_ID",
		Short: "List step results of an execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			steps, err := client.ListExecutionSteps(args[0])
			if err != nil {
				return err
			}

			headers := []string{"INDEX", "NAME", "TYPE", "STATUS", "ERROR"}
			rows := make([][]string, len(steps))
			for i, s := range steps {
				rows[i] = []string{strconv.Itoa(s.StepIndex), s.Name, s.Type, s.Status, s.Error}
			}

			out.Print(headers, rows, steps)
			return nil
		},
	}
}

func newExecutionCostsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "costs EXECUTION_ID",
		Short: "Show the cost breakdown of an execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			breakdown, err := client.GetExecutionCosts(args[0])
			if err != nil {
				return err
			}

			headers := []string{"STEP", "PROVIDER", "MODEL", "UNITS", "KIND", "COST"}
			rows := make([][]string, len(breakdown.Entries))
			for i, e := range breakdown.Entries {
				rows[i] = []string{
					strconv.Itoa(e.StepIndex),
					e.Provider,
					e.Model,
					strconv.FormatFloat(e.Units, 'f', -1, 64),
					e.UnitKind,
					fmt.Sprintf("$%.4f", e.Cost),
				}
			}

			out.Print(headers, rows, breakdown)
			if !out.jsonMode {
				out.Success(fmt.Sprintf("Total: $%.4f", breakdown.Total))
			}
			return nil
		},
	}
}
