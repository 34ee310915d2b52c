package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/PhishXAI/phishxai/pkg/calibrate"
	"github.com/PhishXAI/phishxai/pkg/classifier"
	"github.com/PhishXAI/phishxai/pkg/config"
	"github.com/PhishXAI/phishxai/pkg/engine"
	"github.com/PhishXAI/phishxai/pkg/httputil"
)

const Version = "0.1.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		port := "5000"
		if len(os.Args) > 2 {
			port = os.Args[2]
		}
		runHTTPServer(port)
	case "analyze":
		if len(os.Args) < 4 {
			fmt.Println("Usage: phishxai analyze <channel> <text>")
			os.Exit(1)
		}
		runCLIAnalyze(os.Args[2], strings.Join(os.Args[3:], " "))
	case "calibrate":
		if len(os.Args) < 3 {
			fmt.Println("Usage: phishxai calibrate <scores.csv> [meta.json]")
			os.Exit(1)
		}
		outPath := ""
		if len(os.Args) > 3 {
			outPath = os.Args[3]
		}
		runCalibrate(os.Args[2], outPath)
	case "models":
		listModels()
	case "version":
		fmt.Printf("PhishXAI v%s\n", Version)
		fmt.Println("Phishing Risk Scoring & Explanation Engine")
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("PhishXAI v%s - Phishing Risk Scoring & Explanation Engine\n\n", Version)
	fmt.Println("Usage:")
	fmt.Println("  phishxai serve [port]                  Start HTTP server (default: 5000)")
	fmt.Println("  phishxai analyze <channel> <text>      Score one message (channel: email, sms, url)")
	fmt.Println("  phishxai calibrate <scores.csv> [out]  Derive thresholds from validation scores")
	fmt.Println("  phishxai models                        Show model artifact status")
	fmt.Println("  phishxai version                       Show version")
	fmt.Println("")
	fmt.Println("Examples:")
	fmt.Println("  phishxai serve 8080")
	fmt.Println("  phishxai analyze email \"Verify your account now\"")
	fmt.Println("  phishxai calibrate validation_scores.csv models/phish_meta.json")
	fmt.Println("")
	fmt.Println("Environment Variables:")
	fmt.Println("  PHISHXAI_MODEL_PATH           Path to the linear model artifact")
	fmt.Println("  PHISHXAI_THRESHOLDS_PATH      Path to the threshold metadata record")
	fmt.Println("  PHISHXAI_ENABLE_ONNX          Enable the ONNX encoder family")
	fmt.Println("  PHISHXAI_ENABLE_ATTRIBUTION   Enable the masking attribution backend")
	fmt.Println("  PHISHXAI_ENABLE_SURROGATE     Enable the local surrogate backend")
}

// ============================================================================
// HTTP Server Mode
// ============================================================================

type analyzeRequest struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
	URL     string `json:"url"`
}

func errorResponse(c fiber.Ctx, status int, message string, details any) error {
	payload := fiber.Map{"ok": false, "error": message}
	if details != nil {
		payload["details"] = details
	}
	return c.Status(status).JSON(payload)
}

func runHTTPServer(port string) {
	cfg := config.NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	eng := engine.New(cfg)
	defer func() { _ = eng.Close() }()

	sem := httputil.NewSemaphore(cfg.MaxConcurrency)

	app := fiber.New(fiber.Config{
		AppName: "PhishXAI",
		ErrorHandler: func(c fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) && fe.Code < 500 {
				return errorResponse(c, fe.Code, fe.Message, nil)
			}
			log.Printf("[ERROR] request %s failed: %v", c.Path(), err)
			return errorResponse(c, 500, "Internal server error.", err.Error())
		},
	})

	app.Get("/", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"ok":      true,
			"message": "PhishXAI backend running",
			"endpoints": fiber.Map{
				"health":  "GET /health",
				"analyze": "POST /api/analyze",
			},
		})
	})

	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"ok":          true,
			"version":     Version,
			"family":      eng.Family(),
			"concurrency": sem.Stats(),
		})
	})

	app.Post("/api/analyze", func(c fiber.Ctx) error {
		if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
			return errorResponse(c, 415,
				"Request must be JSON. Set header Content-Type: application/json", nil)
		}

		var req analyzeRequest
		if err := c.Bind().Body(&req); err != nil {
			return errorResponse(c, 400, "Malformed JSON body.", nil)
		}

		channel, err := engine.ParseChannel(req.Channel)
		if err != nil {
			return errorResponse(c, 400,
				"Invalid channel. Use one of: email, sms, url",
				fiber.Map{"channel": req.Channel})
		}

		text := strings.TrimSpace(req.Text)
		url := strings.TrimSpace(req.URL)
		if channel == engine.ChannelURL {
			candidate := url
			if candidate == "" {
				candidate = text
			}
			if candidate == "" {
				return errorResponse(c, 400,
					"For channel 'url', provide 'url' (preferred) or 'text' containing the URL.", nil)
			}
			if len(candidate) > cfg.MaxURLLen {
				return errorResponse(c, 400,
					fmt.Sprintf("URL too long (max %d characters).", cfg.MaxURLLen), nil)
			}
			url = candidate
			text = ""
		} else {
			if text == "" {
				return errorResponse(c, 400,
					fmt.Sprintf("For channel '%s', field 'text' is required.", channel), nil)
			}
			if len(text) > cfg.MaxTextLen {
				return errorResponse(c, 400,
					fmt.Sprintf("Text too long (max %d characters).", cfg.MaxTextLen), nil)
			}
		}

		if !sem.TryAcquire() {
			return errorResponse(c, 503, "Server busy, retry shortly.", nil)
		}
		defer sem.Release()

		analysis, err := eng.Score(c.Context(), engine.ScoringInput{
			Channel:   channel,
			Text:      text,
			URL:       url,
			RequestID: uuid.NewString(),
		})
		if err != nil {
			if errors.Is(err, engine.ErrInvalidInput) {
				return errorResponse(c, 400, err.Error(), nil)
			}
			// Model faults are server-side: no partial verdict.
			log.Printf("[ERROR] scoring failed: %v", err)
			return errorResponse(c, 500, "Scoring unavailable.", err.Error())
		}

		var inputText, inputURL *string
		if channel == engine.ChannelURL {
			inputURL = &url
		} else {
			inputText = &text
		}
		return c.JSON(fiber.Map{
			"ok":      true,
			"channel": channel,
			"input":   fiber.Map{"text": inputText, "url": inputURL},
			"result":  analysis,
		})
	})

	app.Use(func(c fiber.Ctx) error {
		return errorResponse(c, 404, "Endpoint not found.", nil)
	})

	log.Printf("PhishXAI HTTP server starting on :%s", port)
	log.Printf("Endpoints:")
	log.Printf("  GET  /health       - Health check")
	log.Printf("  POST /api/analyze  - Score a message or URL")

	if err := app.Listen(":" + port); err != nil {
		log.Fatal(err)
	}
}

// ============================================================================
// CLI Mode
// ============================================================================

func runCLIAnalyze(channelArg, text string) {
	channel, err := engine.ParseChannel(channelArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid channel %q. Use one of: email, sms, url\n", channelArg)
		os.Exit(1)
	}

	cfg := config.NewDefaultConfig()
	eng := engine.New(cfg)
	defer func() { _ = eng.Close() }()

	input := engine.ScoringInput{Channel: channel, Text: text, RequestID: uuid.NewString()}
	if channel == engine.ChannelURL {
		input.URL = text
		input.Text = ""
	}

	analysis, err := eng.Score(context.Background(), input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Scoring failed: %v\n", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(analysis, "", "  ")
	fmt.Println(string(out))
}

// runCalibrate consumes a CSV of validation rows (label,score) and writes
// the threshold metadata record.
func runCalibrate(csvPath, outPath string) {
	cfg := config.NewDefaultConfig()
	if outPath == "" {
		outPath = cfg.ThresholdsPath
	}

	labels, scores, err := readValidationScores(csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", csvPath, err)
		os.Exit(1)
	}

	thresholds, choice, err := calibrate.Derive(labels, scores, cfg.TargetPrecision)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Calibration failed: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}
	if err := calibrate.SaveThresholds(outPath, thresholds); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to save thresholds: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Chosen phish threshold: %.4f (precision=%.3f, recall=%.3f)\n",
		choice.Threshold, choice.Precision, choice.Recall)
	if choice.Fallback {
		fmt.Printf("Target precision %.2f not reachable, fell back to %.2f\n",
			cfg.TargetPrecision, calibrate.FallbackThreshold)
	}
	fmt.Printf("Suspicious threshold: %.4f\n", thresholds.Suspicious)
	fmt.Printf("Saved thresholds -> %s\n", outPath)
}

// readValidationScores parses (label, phish-probability) rows. A header row
// is skipped when its first field is not numeric.
func readValidationScores(path string) ([]int, []float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = f.Close() }()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, err
	}

	var labels []int
	var scores []float64
	for i, rec := range records {
		if len(rec) < 2 {
			return nil, nil, fmt.Errorf("row %d has %d fields, want 2 (label,score)", i+1, len(rec))
		}
		label, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil {
			if i == 0 {
				continue // header row
			}
			return nil, nil, fmt.Errorf("row %d: bad label %q", i+1, rec[0])
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: bad score %q", i+1, rec[1])
		}
		labels = append(labels, label)
		scores = append(scores, score)
	}
	return labels, scores, nil
}

func listModels() {
	cfg := config.NewDefaultConfig()

	fmt.Println("Model artifact status:")
	fmt.Println("")

	if _, err := os.Stat(cfg.ModelPath); err == nil {
		if art, err := classifier.LoadArtifact(cfg.ModelPath); err == nil {
			fmt.Printf("  ✓ Linear model: %s (family: %s, buckets: %d)\n",
				cfg.ModelPath, art.Family, art.Buckets)
		} else {
			fmt.Printf("  ✗ Linear model: %s (unreadable: %v)\n", cfg.ModelPath, err)
		}
	} else {
		fmt.Printf("  ○ Linear model: %s (not found)\n", cfg.ModelPath)
	}

	if t, err := calibrate.LoadThresholds(cfg.ThresholdsPath); err == nil {
		fmt.Printf("  ✓ Thresholds: %s (suspicious: %.2f, phish: %.2f)\n",
			cfg.ThresholdsPath, t.Suspicious, t.Phish)
	} else {
		fmt.Printf("  ○ Thresholds: %s (not found, defaults will be used)\n", cfg.ThresholdsPath)
	}

	if onnxCfg := classifier.AutoDetectONNXConfig(); onnxCfg != nil {
		fmt.Printf("  ✓ ONNX encoder: %s\n", onnxCfg.ModelPath)
	} else {
		fmt.Println("  ○ ONNX encoder: not found (set PHISHXAI_ONNX_MODEL_PATH to enable)")
	}
}
