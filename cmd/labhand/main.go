package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/haricheung/labhand/internal/action"
	"github.com/haricheung/labhand/internal/actuator"
	"github.com/haricheung/labhand/internal/bus"
	"github.com/haricheung/labhand/internal/config"
	"github.com/haricheung/labhand/internal/llm"
	"github.com/haricheung/labhand/internal/memory"
	"github.com/haricheung/labhand/internal/pipeline"
	"github.com/haricheung/labhand/internal/roles/dispatcher"
	"github.com/haricheung/labhand/internal/roles/translator"
	"github.com/haricheung/labhand/internal/tracelog"
	"github.com/haricheung/labhand/internal/types"
	"github.com/haricheung/labhand/internal/ui"
	"github.com/haricheung/labhand/internal/world"
)

const defaultStatePath = "testdata/lab_state.json"

func main() {
	// Load env
	_ = godotenv.Load(".env")

	cfg, err := config.Load(os.Getenv("LABHAND_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "labhand: %v\n", err)
		os.Exit(1)
	}

	// World state — the perception snapshot the planner starts from
	statePath := os.Getenv("LABHAND_STATE")
	if statePath == "" {
		statePath = defaultStatePath
	}
	data, err := os.ReadFile(statePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "labhand: read world state: %v\n", err)
		os.Exit(1)
	}
	st, err := world.ParseSnapshot(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "labhand: %v\n", err)
		os.Exit(1)
	}

	// Resolve cache dir
	homeDir, _ := os.UserHomeDir()
	cacheDir := filepath.Join(homeDir, ".cache", "labhand")

	// Build the bus — foundational, everything depends on it
	b := bus.New()

	// LLM client — shared by dispatcher and translator
	llmClient := llm.New("labhand")

	// Plan history (LevelDB). Planning works without it.
	hist, err := memory.Open(filepath.Join(cacheDir, "plans"))
	if err != nil {
		log.Printf("[MAIN] plan history disabled: %v", err)
		hist = nil
	}

	chk := action.Checker{ItemCapacity: cfg.Capacity.Items}
	sim := actuator.NewSim(chk, st)

	disp := dispatcher.New(b, llmClient, hist)
	tr := translator.New(b, llmClient)
	pipe := pipeline.New(cfg, b, tr, sim, hist)

	display := ui.New(b.Tap())

	// Context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nlabhand: shutting down")
		cancel()
	}()

	go display.Run(ctx)
	if hist != nil {
		go hist.Run(ctx)
	}

	app := &app{
		cfg:      cfg,
		b:        b,
		disp:     disp,
		pipe:     pipe,
		sim:      sim,
		traceDir: os.Getenv("LABHAND_TRACE_DIR"),
	}

	// REPL or one-shot
	if len(os.Args) > 1 && os.Args[1] != "" {
		input := strings.Join(os.Args[1:], " ")
		err := app.handle(ctx, input)
		// Cancel so the history goroutine drains pending writes before exit.
		cancel()
		time.Sleep(200 * time.Millisecond)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	} else {
		app.runREPL(ctx, cancel)
		time.Sleep(200 * time.Millisecond)
	}
}

type app struct {
	cfg      config.Config
	b        *bus.Bus
	disp     *dispatcher.Dispatcher
	pipe     *pipeline.Pipeline
	sim      *actuator.Sim
	traceDir string
}

// handle runs one request end to end: dispatch, then either answer directly
// or plan and execute.
func (a *app) handle(ctx context.Context, input string) error {
	requestID := uuid.New().String()

	trace, err := tracelog.Open(a.traceDir, requestID)
	if err != nil {
		log.Printf("[MAIN] tracing disabled: %v", err)
	}
	defer trace.Close()
	trace.Request(requestID, input)

	a.publish(types.StageUser, types.StageDispatcher, types.MsgRequest, types.Request{
		RequestID: requestID,
		Text:      input,
	})

	route, err := a.disp.Route(ctx, requestID, input, summarize(a.sim.Snapshot()))
	if err != nil {
		return err
	}
	trace.Route(route.Route, route.Reply)

	if route.Route == "answer" {
		a.publish(types.StageDispatcher, types.StageUser, types.MsgAnswer, types.Answer{
			RequestID: requestID,
			Text:      route.Reply,
		})
		trace.Done("answered", 0)
		// Give the display a beat to close its box before printing the reply.
		time.Sleep(150 * time.Millisecond)
		fmt.Printf("\n%s\n", route.Reply)
		return nil
	}

	res, err := a.pipe.Handle(ctx, requestID, input, trace)
	if err != nil {
		return err
	}
	time.Sleep(150 * time.Millisecond)
	fmt.Printf("\nexecuted %d commands (%d repair rounds)\n", res.Executed, res.Rounds)
	return nil
}

func (a *app) runREPL(ctx context.Context, cancel context.CancelFunc) {
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Println("labhand — two-armed lab robot planner (type 'exit' to quit)")

	for {
		fmt.Print("\nlabhand> ")
		if !scanner.Scan() {
			cancel()
			return
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			cancel()
			return
		}
		if input == "state" {
			if snap, err := a.sim.Snapshot().Snapshot(); err == nil {
				fmt.Println(string(snap))
			}
			continue
		}

		if err := a.handle(ctx, input); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (a *app) publish(from, to types.Stage, mt types.MessageType, payload any) {
	a.b.Publish(types.Message{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		From:      from,
		To:        to,
		Type:      mt,
		Payload:   payload,
	})
}

// summarize renders a one-line-per-object view of the world for the
// dispatcher's answer prompts.
func summarize(st *world.State) string {
	ids := make([]string, 0, len(st.Objects))
	for id := range st.Objects {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var sb strings.Builder
	for _, id := range ids {
		o := st.Objects[id]
		fmt.Fprintf(&sb, "%s (%s)", id, o.Kind)
		if o.ContainedIn != "" {
			fmt.Fprintf(&sb, " in %s", o.ContainedIn)
		}
		if o.Closure != "" {
			fmt.Fprintf(&sb, ", %s", o.Closure)
		}
		if o.Power != "" {
			fmt.Fprintf(&sb, ", power %s", o.Power)
		}
		if len(o.Liquids) > 0 {
			fmt.Fprintf(&sb, ", %.0f ml of %s", o.FillLevel*1000, strings.Join(o.LiquidList(), "+"))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
