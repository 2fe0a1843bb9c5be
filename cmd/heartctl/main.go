package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"heart-insights/internal/client"
	"heart-insights/internal/common"
	"heart-insights/internal/patient"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usage = `usage: heartctl [-server URL] <command> [flags]

commands:
  health      show the active model
  predict     score one patient and print the result
  recommend   score one patient and print lifestyle recommendations
  batch       score a CSV file
  models      compare the trained models
`

func main() {
	_ = godotenv.Load()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	global := flag.NewFlagSet("heartctl", flag.ExitOnError)
	server := global.String("server", envOr(common.EnvServerURL, common.DefaultServerURL), "Server base URL")
	timeout := global.Duration("timeout", 30*time.Second, "Request timeout")
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	global.Parse(os.Args[1:])

	args := global.Args()
	if len(args) == 0 {
		global.Usage()
		os.Exit(2)
	}

	c := client.New(*server, *timeout)
	ctx := context.Background()

	var err error
	switch args[0] {
	case "health":
		err = runHealth(ctx, c)
	case "predict":
		err = runPredict(ctx, c, args[1:], false)
	case "recommend":
		err = runPredict(ctx, c, args[1:], true)
	case "batch":
		err = runBatch(ctx, c, args[1:])
	case "models":
		err = runModels(ctx, c)
	default:
		global.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", args[0]).Msg("Command failed")
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func runHealth(ctx context.Context, c *client.Client) error {
	model, err := c.Health(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("ok, active model: %s\n", model)
	return nil
}

// recordFlags binds one flag per feature, starting from the form defaults.
// Categorical fields take their numeric codes.
func recordFlags(fs *flag.FlagSet) (*patient.Record, *string) {
	rec := patient.DefaultRecord()
	in := fs.String("in", "", "Read the patient record from a JSON file instead of flags")
	fs.Float64Var(&rec.Age, "age", rec.Age, "Age in years")
	fs.Var(intFlag{(*int)(&rec.Sex)}, "sex", "Sex (1 male, 0 female)")
	fs.Var(intFlag{(*int)(&rec.ChestPainType)}, "cp", "Chest pain type (1-4)")
	fs.Float64Var(&rec.RestingBP, "bp", rec.RestingBP, "Resting blood pressure (mm Hg)")
	fs.Float64Var(&rec.Cholesterol, "chol", rec.Cholesterol, "Serum cholesterol (mg/dl)")
	fs.Var(intFlag{(*int)(&rec.FastingBloodSugar)}, "fbs", "Fasting blood sugar > 120 mg/dl (1 true, 0 false)")
	fs.Var(intFlag{(*int)(&rec.RestingECG)}, "ecg", "Resting ECG (0-2)")
	fs.Float64Var(&rec.MaxHeartRate, "hr", rec.MaxHeartRate, "Maximum heart rate achieved")
	fs.Var(intFlag{(*int)(&rec.ExerciseAngina)}, "angina", "Exercise induced angina (1 yes, 0 no)")
	fs.Float64Var(&rec.Oldpeak, "oldpeak", rec.Oldpeak, "ST depression induced by exercise")
	fs.Var(intFlag{(*int)(&rec.STSlope)}, "slope", "ST slope (1-3)")
	fs.Var(intFlag{(*int)(&rec.Smoke)}, "smoke", "Smoker (1 yes, 0 no)")
	return &rec, in
}

type intFlag struct{ p *int }

func (f intFlag) String() string {
	if f.p == nil {
		return "0"
	}
	return fmt.Sprint(*f.p)
}

func (f intFlag) Set(s string) error {
	_, err := fmt.Sscanf(s, "%d", f.p)
	return err
}

func runPredict(ctx context.Context, c *client.Client, args []string, recommend bool) error {
	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	rec, in := recordFlags(fs)
	locale := fs.String("locale", "", "Response language (en, hi, mr)")
	fs.Parse(args)

	if *in != "" {
		data, err := os.ReadFile(*in)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, rec); err != nil {
			return fmt.Errorf("parse %s: %w", *in, err)
		}
	}

	res, err := c.Predict(ctx, *rec, *locale)
	if err != nil {
		return err
	}
	fmt.Printf("%s (confidence %.1f%%)\n", res.Verdict, res.Confidence*100)
	fmt.Printf("P(no disease)=%.4f P(disease)=%.4f\n", res.Result.Probabilities[0], res.Result.Probabilities[1])
	for _, w := range res.Warnings {
		fmt.Printf("warning: %s\n", w.Message)
	}
	if !recommend {
		return nil
	}

	report, err := c.Recommendations(ctx, *locale)
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Println(report.Title)
	fmt.Println(report.Report.Intro)
	for _, r := range report.Report.Recommendations {
		fmt.Printf("  - %s\n", r)
	}
	if report.Report.Empty != "" {
		fmt.Println(report.Report.Empty)
	}
	fmt.Println(report.Report.Outro)
	return nil
}

func runBatch(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	in := fs.String("in", "", "CSV file to score (required)")
	out := fs.String("out", common.PredictionsFileName, "Where to write the scored CSV, - for stdout")
	fs.Parse(args)

	if *in == "" {
		return fmt.Errorf("-in is required")
	}
	f, err := os.Open(*in)
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := c.Batch(ctx, f, "")
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if *out != "-" {
		file, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer file.Close()
		w = file
	}
	if _, err := w.Write(res.CSV); err != nil {
		return err
	}
	log.Info().Int("rows", res.Rows).Str("out", *out).Msg("Batch scored")
	return nil
}

func runModels(ctx context.Context, c *client.Client) error {
	m, err := c.Models(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%-24s %8s %8s %8s %8s %8s\n", "model", "test", "cv", "prec", "recall", "f1")
	for _, row := range m.Models {
		marker := " "
		if row.Name == m.Active {
			marker = "*"
		}
		fmt.Printf("%s%-23s %8.3f %8.3f %8.3f %8.3f %8.3f\n",
			marker, row.Name, row.TestAccuracy, row.CVAccuracy, row.Precision, row.Recall, row.F1)
	}
	return nil
}
