package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.temporal.io/sdk/client"
)

func main() {
	address := flag.String("address", envOr("TEMPORAL_ADDRESS", "localhost:7233"), "Temporal frontend address")
	taskQueue := flag.String("task-queue", envOr("ETL_TASK_QUEUE", "etl-task-queue"), "task queue the worker listens on")
	workflowID := flag.String("workflow-id", fmt.Sprintf("etl-%d", time.Now().Unix()), "workflow id for this run")
	wait := flag.Bool("wait", false, "block until the workflow finishes and print its result")
	flag.Parse()

	c, err := client.Dial(client.Options{HostPort: *address})
	if err != nil {
		log.Fatalf("Unable to connect to Temporal at %s: %v", *address, err)
	}
	defer c.Close()

	ctx := context.Background()
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        *workflowID,
		TaskQueue: *taskQueue,
	}, "ETLWorkflow")
	if err != nil {
		log.Fatalf("Failed to start workflow: %v", err)
	}

	fmt.Printf("Started workflow %s run %s on %s\n", run.GetID(), run.GetRunID(), *taskQueue)

	if *wait {
		var result string
		if err := run.Get(ctx, &result); err != nil {
			log.Fatalf("Workflow failed: %v", err)
		}
		fmt.Printf("Workflow finished: %s\n", result)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
