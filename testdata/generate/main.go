// Command generate produces a deterministic set of sample postbacks for
// local testing. The set is written to testdata/postbacks.json and, when
// POSTBACK_URL is set, replayed against a running receiver.
package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/leads/postback/internal/campaign"
	"github.com/leads/postback/internal/domain"
)

func main() {
	rng := rand.New(rand.NewSource(42))
	baseDir := findTestdataDir()

	groups := campaign.Default().Groups()
	channels := []string{"fb", "tt", "vk", "tg"}
	statuses := []string{"1", "1", "1", "0", "2"}

	var postbacks []domain.Postback
	for i := 1; i <= 200; i++ {
		pb := domain.Postback{
			Sub5:   strconv.Itoa(rng.Intn(50) + 1),
			Status: statuses[rng.Intn(len(statuses))],
		}

		// Most postbacks name a known group; a few are unroutable.
		switch r := rng.Intn(20); {
		case r == 0:
			pb.Sub1 = "unknown_" + channels[rng.Intn(len(channels))]
		case r == 1:
			pb.Sub1 = ""
		default:
			g := groups[rng.Intn(len(groups))]
			key := g.Keys[rng.Intn(len(g.Keys))]
			if rng.Intn(2) == 0 {
				key = strings.ToUpper(key)
			}
			pb.Sub1 = key + "_" + channels[rng.Intn(len(channels))]
		}

		// Roughly one postback in three carries a lead.
		if rng.Intn(3) == 0 {
			pb.Sub6 = strconv.Itoa(100000 + rng.Intn(900000))
		}

		switch rng.Intn(10) {
		case 0:
			pb.Sum = "0"
		case 1:
			pb.Sum = "n/a"
		default:
			pb.Sum = strconv.FormatFloat(float64(rng.Intn(50000))/100+1, 'f', 2, 64)
		}

		postbacks = append(postbacks, pb)
	}

	path := baseDir + "/postbacks.json"
	writeJSONFile(path, postbacks)
	fmt.Printf("Generated %d postbacks -> %s\n", len(postbacks), path)

	if target := os.Getenv("POSTBACK_URL"); target != "" {
		replay(target, postbacks)
	}
}

func replay(target string, postbacks []domain.Postback) {
	client := &http.Client{Timeout: 10 * time.Second}
	failed := 0
	for _, pb := range postbacks {
		q := url.Values{}
		for k, v := range map[string]string{
			"sub1": pb.Sub1, "sub5": pb.Sub5, "sub6": pb.Sub6, "sum": pb.Sum, "status": pb.Status,
		} {
			if v != "" {
				q.Set(k, v)
			}
		}

		resp, err := client.Get(target + "?" + q.Encode())
		if err != nil {
			failed++
			continue
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			failed++
		}
	}
	fmt.Printf("Replayed %d postbacks to %s (%d failed)\n", len(postbacks), target, failed)
}

func writeJSONFile(path string, v any) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		panic(err)
	}
}

func findTestdataDir() string {
	for _, c := range []string{"testdata", "../testdata", "../../testdata"} {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c
		}
	}
	return "testdata"
}
