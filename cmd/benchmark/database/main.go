package main

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/nStangl/tabledb/server/config"
	"github.com/nStangl/tabledb/server/data"
	"github.com/nStangl/tabledb/server/store"
	"github.com/nStangl/tabledb/util"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

var (
	cfg      config.Config
	words    = pflag.String("words", "cmd/benchmark/words.txt", "File with one word per line, key material")
	generate = pflag.Int("generate", 300, "Number of generated words when the words file is missing")
	csvPath  = pflag.String("csv", "", "Write every measured latency to this CSV file")
)

const table = "benchmark"

type res struct {
	w bool
	r data.Result
	d time.Duration
}

// Storage benchmark: concurrent writes then concurrent reads against one table store
func main() {
	cfg.Register(pflag.CommandLine)
	pflag.Parse()

	config.SetLogLevel(cfg.Loglevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	if err := os.RemoveAll(filepath.Join(cfg.Directory, table)); err != nil {
		log.Println(err)
	}

	keys, values := keyspace(loadWords())

	log.Println("loaded example keys", len(keys))

	s, err := store.Open(cfg.Directory, table, cfg.StoreOptions())
	if err != nil {
		log.Fatal(err)
	}

	defer func() {
		if err := s.Close(); err != nil {
			log.Printf("failed to close store: %v", err)
		}
	}()

	var (
		wg  sync.WaitGroup
		wg2 sync.WaitGroup
		rs  = make(chan res, 1000)
	)

	readTimes := make([]float64, 0, len(keys))
	writeTimes := make([]float64, 0, len(keys))
	outcomeRead := make(map[data.ResultKind]uint)

	wg2.Add(1)

	go func() {
		defer wg2.Done()

		for r := range rs {
			if r.w {
				writeTimes = append(writeTimes, float64(r.d.Nanoseconds()))
			} else {
				outcomeRead[r.r.Kind]++
				readTimes = append(readTimes, float64(r.d.Nanoseconds()))
			}
		}
	}()

	log.Println("setting data", len(keys))

	start := time.Now()

	for i := 0; i < len(keys); i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			t := time.Now()

			if err := s.Set(keys[i], values[i]); err != nil {
				log.Fatal(err)
			}

			rs <- res{w: true, d: time.Since(t)}

			if rand.Intn(10) == 1 {
				if err := s.Del(keys[i]); err != nil {
					log.Fatal(err)
				}
			}
		}(i)
	}

	wg.Wait()

	log.Printf("setting took %s", time.Since(start))

	rand.Shuffle(len(keys), func(i, j int) {
		keys[i], keys[j] = keys[j], keys[i]
	})

	log.Println("getting data", len(keys))

	start = time.Now()

	for i := 0; i < len(keys); i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			t := time.Now()

			r, err := s.Get(keys[i])
			if err != nil {
				log.Fatal(err)
			}

			rs <- res{r: r, d: time.Since(t)}
		}(i)
	}

	wg.Wait()

	log.Printf("getting took %s", time.Since(start))

	close(rs)

	wg2.Wait()

	for kind, n := range outcomeRead {
		log.Printf("%d reads returned %s", n, kind)
	}

	stats := s.Stats()
	log.Printf("store holds %d memtable keys and %d sstables", stats.MemtableKeys, len(stats.Tables))

	const maxWidth = 5

	fmt.Println("Showing histogram for reads (in nanoseconds)")
	_ = histogram.Fprint(os.Stdout, histogram.Hist(5, readTimes), histogram.Linear(maxWidth))

	fmt.Println("Showing histogram for writes (in nanoseconds)")
	_ = histogram.Fprint(os.Stdout, histogram.Hist(5, writeTimes), histogram.Linear(maxWidth))

	if *csvPath != "" {
		if err := util.WriteCSV(*csvPath, latencyRecords(readTimes, writeTimes)); err != nil {
			log.Fatal(err)
		}

		log.Printf("latencies written to %s", *csvPath)
	}
}

func loadWords() []string {
	ws, err := util.ReadWords(*words)
	if err == nil && len(ws) > 0 {
		return ws
	}

	log.Printf("no words in %s, generating %d", *words, *generate)

	ws = make([]string, *generate)
	for i := range ws {
		ws[i] = "w" + strconv.Itoa(i)
	}

	return ws
}

// keyspace pairs every word with every word of a shuffled copy
func keyspace(words []string) ([]string, []string) {
	shuffled := make([]string, len(words))
	copy(shuffled, words)

	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	var (
		keys   = make([]string, 0, len(words)*len(words))
		values = make([]string, 0, len(words)*len(words))
	)

	for i := range words {
		for j := range shuffled {
			keys = append(keys, words[i]+shuffled[j])
			values = append(values, fmt.Sprintf("%s%s%d", words[i], shuffled[j], i+j))
		}
	}

	return keys, values
}

func latencyRecords(reads, writes []float64) [][]string {
	records := make([][]string, 0, len(reads)+len(writes)+1)
	records = append(records, []string{"op", "nanoseconds"})

	for _, t := range reads {
		records = append(records, []string{"read", strconv.FormatFloat(t, 'f', -1, 64)})
	}

	for _, t := range writes {
		records = append(records, []string{"write", strconv.FormatFloat(t, 'f', -1, 64)})
	}

	return records
}
