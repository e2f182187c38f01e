package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"videoReason/config"
	"videoReason/core"
	"videoReason/processors"
	"videoReason/server"
	"videoReason/utils"
)

func main() {
	os.Exit(run())
}

func run() int {
	videoPath := flag.String("video-path", "", "Local path to video file or GCS URI (gs://bucket/video.mp4)")
	query := flag.String("query", "", "Natural language query about the video content")
	topK := flag.Int("top-k", 3, "Number of top segments to retrieve and analyze")
	projectID := flag.String("project-id", "", "GCP project ID (overrides GOOGLE_CLOUD_PROJECT)")
	region := flag.String("region", "", "GCP region (overrides GCP_REGION)")
	serve := flag.Bool("serve", false, "Run as an HTTP server instead of a one-shot CLI")
	addr := flag.String("addr", ":8080", "Listen address in serve mode")
	flag.Parse()

	log.Println("Loading configuration...")
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Configuration error: %v", err)
		return 1
	}
	if *projectID != "" {
		cfg.ProjectID = *projectID
	}
	if *region != "" {
		cfg.Region = *region
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("Configuration error: %v", err)
		config.PrintConfigInstructions()
		return 1
	}

	ctx := context.Background()

	log.Println("Initializing video reasoning pipeline...")
	pipeline, err := processors.NewPipeline(ctx, cfg)
	if err != nil {
		log.Printf("Failed to initialize pipeline: %v", err)
		return 1
	}
	answerer := processors.NewAnswerSynthesizer(cfg)

	if *serve {
		srv := server.New(pipeline, answerer, cfg.Store)
		mux := http.NewServeMux()
		srv.Routes(mux)
		log.Printf("Listening on %s", *addr)
		if err := http.ListenAndServe(*addr, mux); err != nil {
			log.Printf("Server error: %v", err)
			return 1
		}
		return 0
	}

	if *videoPath == "" || *query == "" {
		fmt.Fprintln(os.Stderr, "Usage: videoReason -video-path <path|gs://...> -query \"...\" [-top-k 3]")
		flag.PrintDefaults()
		return 1
	}

	log.Printf("Processing video: %s", *videoPath)
	if _, err := pipeline.ProcessVideo(ctx, *videoPath); err != nil {
		log.Printf("Error processing video: %v", err)
		return 1
	}

	log.Printf("Querying with: %q", *query)
	analyses, err := pipeline.QueryAndAnalyze(ctx, *query, *topK)
	if err != nil {
		log.Printf("Error analyzing video: %v", err)
		return 1
	}

	printResults(analyses)
	if answer := answerer.Synthesize(ctx, *query, analyses); answer != "" {
		fmt.Println("ANSWER:")
		fmt.Println(answer)
	}

	log.Println("Video reasoning complete!")
	return 0
}

func printResults(analyses []core.AnalysisResult) {
	line := strings.Repeat("=", 50)

	fmt.Println("\n" + line)
	fmt.Println("VIDEO REASONING RESULTS")
	fmt.Println(line + "\n")

	for i, a := range analyses {
		fmt.Printf("Clip %d: %.1fs - %.1fs\n", i+1, a.ClipStart, a.ClipEnd)
		fmt.Printf("Summary: %s\n", a.Summary)
		fmt.Printf("Promises: %s\n", joinOrNone(a.Promises))
		fmt.Printf("Body Language: %s\n", orNA(a.BodyLanguage))
		fmt.Printf("Confidence: %.2f\n", a.ConfidenceScore)
		fmt.Printf("Actions: %s\n\n", joinOrNone(a.Actions))
	}

	fmt.Println(line)
	fmt.Println("FULL RESULTS (JSON):")
	fmt.Println(line)
	fmt.Println(string(utils.MustJSON(analyses)))
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, ", ")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
