package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kaapeh/copiloto/internal/rag"
)

// runAskOnce answers a single question supplied on the command line.
func runAskOnce(ctx context.Context, a *app, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("usage: copiloto ask <question>")
	}

	answer, err := a.service.Answer(ctx, question)
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}
	fmt.Println(answer.Content)
	printMetadata(a, answer)
	return nil
}

// runInteractive reads questions from stdin until EOF or interrupt.
func runInteractive(ctx context.Context, a *app) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats := a.index.Stats()
	fmt.Printf("Copiloto listo. Base de conocimiento: %d fragmentos en %d categorías.\n",
		stats.Count, len(stats.Categories))
	fmt.Println(`Escribe tu pregunta (o "salir" para terminar).`)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			break
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "salir" || question == "exit" || question == "quit" {
			break
		}

		answer, err := a.service.Answer(ctx, question)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			a.logger.Error("answer failed", "error", err)
			continue
		}
		fmt.Println()
		fmt.Println(answer.Content)
		printMetadata(a, answer)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	fmt.Println("\nHasta pronto.")
	return nil
}

func printMetadata(a *app, answer rag.Answer) {
	if answer.Metadata == nil || os.Getenv("DEBUG") == "" {
		return
	}
	a.logger.Debug("answer metadata",
		"retrieved_documents", answer.Metadata.RetrievedDocuments,
		"average_score", answer.Metadata.AverageScore,
		"retrieval_time", answer.Metadata.RetrievalTime,
		"generation_time", answer.Metadata.GenerationTime)
}
