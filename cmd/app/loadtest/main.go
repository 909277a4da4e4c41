// Command loadtest drives the submission journal with a synthetic mix of
// lifecycle writes and per-account history reads.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pvzzle/txrecorder/internal/storage"
	"github.com/pvzzle/txrecorder/internal/storage/pg"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type opKind int

const (
	opList opKind = iota
	opSubmit
)

type params struct {
	workers   int
	baseRPS   int
	peakRPS   int
	ramp      time.Duration
	readRatio int
	accounts  int
	limit     int
}

type stats struct {
	lists    atomic.Uint64
	submits  atomic.Uint64
	failures atomic.Uint64

	mu      sync.Mutex
	samples map[opKind][]time.Duration
	began   time.Time
	ended   time.Time
}

func main() {
	var (
		dsn     = flag.String("dsn", "", "Postgres DSN")
		dur     = flag.Duration("dur", 60*time.Second, "measured duration")
		warmup  = flag.Duration("warmup", 5*time.Second, "unmeasured warmup")
		p       params
		logJSON = flag.Bool("json", false, "log as JSON")
	)
	flag.IntVar(&p.workers, "workers", 32, "concurrent workers")
	flag.IntVar(&p.baseRPS, "rps", 200, "base operations per second")
	flag.IntVar(&p.peakRPS, "peak-rps", 800, "rate reached at the end of the ramp")
	flag.DurationVar(&p.ramp, "ramp", 10*time.Second, "ramp from base to peak rate")
	flag.IntVar(&p.readRatio, "reads", 10, "history reads per submission")
	flag.IntVar(&p.accounts, "accounts", 5000, "distinct simulated accounts")
	flag.IntVar(&p.limit, "limit", 10, "history page size")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if *logJSON {
		log = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	if *dsn == "" {
		log.Fatal().Msg("-dsn is required")
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, *dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("pgxpool new")
	}
	defer pool.Close()

	repo := pg.New(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("ensure schema")
	}

	log.Info().Dur("warmup", *warmup).Msg("warming up")
	warm := p
	warm.peakRPS, warm.ramp = p.baseRPS, 0
	run(ctx, repo, warm, *warmup, nil)

	log.Info().Dur("duration", *dur).Int("workers", p.workers).Msg("measuring")
	st := &stats{samples: map[opKind][]time.Duration{}}
	run(ctx, repo, p, *dur, st)

	report(st)
}

func run(ctx context.Context, repo storage.Repository, p params, dur time.Duration, st *stats) {
	ctx, cancel := context.WithTimeout(ctx, dur)
	defer cancel()

	lim := rate.NewLimiter(rate.Limit(p.baseRPS), p.baseRPS)
	ops := make(chan opKind, p.workers*4)

	if st != nil {
		st.began = time.Now()
	}

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for op := range ops {
				started := time.Now()
				err := execute(ctx, repo, op, r, p)
				if st != nil {
					st.observe(op, time.Since(started), err)
				}
			}
		}(time.Now().UnixNano() + int64(i))
	}

	go func() {
		defer close(ops)
		start := time.Now()
		for n := 0; ; n++ {
			if err := lim.Wait(ctx); err != nil {
				return
			}
			if p.ramp > 0 {
				lim.SetLimit(rampLimit(p, time.Since(start)))
			}

			op := opList
			if n%(p.readRatio+1) == p.readRatio {
				op = opSubmit
			}
			select {
			case ops <- op:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	if st != nil {
		st.ended = time.Now()
	}
}

func rampLimit(p params, elapsed time.Duration) rate.Limit {
	if elapsed >= p.ramp {
		return rate.Limit(p.peakRPS)
	}
	frac := float64(elapsed) / float64(p.ramp)
	return rate.Limit(float64(p.baseRPS) + float64(p.peakRPS-p.baseRPS)*frac)
}

func execute(ctx context.Context, repo storage.Repository, op opKind, r *rand.Rand, p params) error {
	account := fmt.Sprintf("0x%040x", r.Intn(p.accounts)+1)

	switch op {
	case opList:
		_, err := repo.ListSubmissions(ctx, account, p.limit)
		return err
	case opSubmit:
		return submitLifecycle(ctx, repo, account, r)
	}
	return nil
}

// submitLifecycle writes one submission through the same status sequence a
// successful Submit produces.
func submitLifecycle(ctx context.Context, repo storage.Repository, account string, r *rand.Rand) error {
	now := time.Now().UTC()
	sub := storage.Submission{
		ID:        uuid.NewString(),
		Account:   account,
		Recipient: fmt.Sprintf("0x%040x", r.Uint64()),
		AmountWei: "10000000000000000",
		Keyword:   "load",
		Message:   "loadtest",
		Status:    storage.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.UpsertSubmission(ctx, sub); err != nil {
		return err
	}

	transfer := fmt.Sprintf("0x%064x", r.Uint64())
	sub.TransferHash, sub.Status = &transfer, storage.StatusTransferSent
	if err := repo.UpsertSubmission(ctx, sub); err != nil {
		return err
	}

	record := fmt.Sprintf("0x%064x", r.Uint64())
	sub.RecordHash, sub.Status = &record, storage.StatusRecordSent
	if err := repo.UpsertSubmission(ctx, sub); err != nil {
		return err
	}

	block := uint64(r.Intn(20_000_000))
	sub.BlockNum, sub.Status, sub.UpdatedAt = &block, storage.StatusConfirmed, time.Now().UTC()
	return repo.UpsertSubmission(ctx, sub)
}

func (s *stats) observe(op opKind, d time.Duration, err error) {
	if op == opList {
		s.lists.Add(1)
	} else {
		s.submits.Add(1)
	}
	if err != nil {
		s.failures.Add(1)
		return
	}
	s.mu.Lock()
	s.samples[op] = append(s.samples[op], d)
	s.mu.Unlock()
}

func report(s *stats) {
	elapsed := s.ended.Sub(s.began)
	lists, submits, failures := s.lists.Load(), s.submits.Load(), s.failures.Load()

	fmt.Printf("\n== JOURNAL LOAD ==\n")
	fmt.Printf("elapsed: %s\n", elapsed)
	fmt.Printf("lists=%d submits=%d failures=%d\n", lists, submits, failures)
	if elapsed > 0 {
		fmt.Printf("throughput: %.1f ops/s\n", float64(lists+submits)/elapsed.Seconds())
	}

	for _, op := range []opKind{opList, opSubmit} {
		name := "list"
		if op == opSubmit {
			name = "submit"
		}
		lat := s.samples[op]
		if len(lat) == 0 {
			fmt.Printf("%s: no samples\n", name)
			continue
		}
		sort.Slice(lat, func(i, j int) bool { return lat[i] < lat[j] })
		q := func(f float64) time.Duration { return lat[int(f*float64(len(lat)-1))] }
		fmt.Printf("%s: p50=%s p95=%s p99=%s max=%s\n", name, q(0.50), q(0.95), q(0.99), lat[len(lat)-1])
	}
}
