package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/localseek/internal/pipeline"
	"github.com/dshills/localseek/internal/summarize"
)

var searchFlags struct {
	collection string
	limit      int
	minScore   float64
	expand     bool
	rerank     bool
	summarize  bool
	jsonOut    bool
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search indexed collections",
	Long: `Search runs BM25 retrieval over the index, optionally widened by
LLM-generated query variants and re-ordered by LLM relevance scoring.
When the local LLM is unreachable the search silently falls back to
plain BM25 fusion.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		resp, err := a.pipeline.Search(cmd.Context(), pipeline.Request{
			Query:       strings.Join(args, " "),
			Collection:  searchFlags.collection,
			Limit:       searchFlags.limit,
			MinScore:    searchFlags.minScore,
			Expand:      searchFlags.expand && a.cfg.ExpandEnabled,
			ExpandCount: a.cfg.ExpandCount,
			Rerank:      searchFlags.rerank && a.cfg.RerankEnabled,
			RerankTopK:  a.cfg.RerankTopK,
			RRFConstant: a.cfg.RRFConstant,
		})
		if err != nil {
			return err
		}

		var summary summarize.Result
		if searchFlags.summarize {
			summary = a.summarizer.Summarize(cmd.Context(),
				strings.Join(args, " "), resp.Results, summarize.DefaultMaxResults)
		}

		if searchFlags.jsonOut {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			out := searchResponseJSON(resp)
			out.Summary = summary.Summary
			out.Degraded = out.Degraded || summary.Degraded
			return enc.Encode(out)
		}

		printSearchResults(resp, summary)
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVarP(&searchFlags.collection, "collection", "c", "", "restrict search to one collection")
	searchCmd.Flags().IntVarP(&searchFlags.limit, "limit", "n", pipeline.DefaultLimit, "maximum results")
	searchCmd.Flags().Float64Var(&searchFlags.minScore, "min-score", 0, "minimum BM25 relevance")
	searchCmd.Flags().BoolVar(&searchFlags.expand, "expand", true, "expand the query with LLM variants")
	searchCmd.Flags().BoolVar(&searchFlags.rerank, "rerank", true, "rerank top results with the LLM")
	searchCmd.Flags().BoolVar(&searchFlags.summarize, "summarize", false, "synthesize a short summary of the top results")
	searchCmd.Flags().BoolVar(&searchFlags.jsonOut, "json", false, "emit JSON instead of text")
	rootCmd.AddCommand(searchCmd)
}

// searchResultJSON is the stable JSON shape for one result
type searchResultJSON struct {
	Rank       int     `json:"rank"`
	Path       string  `json:"path"`
	Title      string  `json:"title"`
	Collection string  `json:"collection"`
	Score      float64 `json:"score"`
	LLMScore   float64 `json:"llm_score,omitempty"`
	Snippet    string  `json:"snippet,omitempty"`
}

type searchOutputJSON struct {
	Results       []searchResultJSON `json:"results"`
	Total         int                `json:"total"`
	Variants      []string           `json:"query_variants"`
	UsedExpansion bool               `json:"used_expansion"`
	UsedRerank    bool               `json:"used_rerank"`
	Summary       string             `json:"summary,omitempty"`
	Degraded      bool               `json:"degraded,omitempty"`
	DurationMS    int64              `json:"duration_ms"`
}

func searchResponseJSON(resp *pipeline.Response) searchOutputJSON {
	out := searchOutputJSON{
		Results:       make([]searchResultJSON, 0, len(resp.Results)),
		Total:         resp.Total,
		Variants:      resp.Variants,
		UsedExpansion: resp.UsedExpansion,
		UsedRerank:    resp.UsedRerank,
		Degraded:      resp.ExpansionDegraded || resp.RerankDegraded,
		DurationMS:    resp.Duration.Milliseconds(),
	}
	for i, r := range resp.Results {
		entry := searchResultJSON{
			Rank:       i + 1,
			Path:       r.Path,
			Title:      r.Title,
			Collection: r.Collection,
			Score:      r.FinalScore,
			Snippet:    r.Snippet,
		}
		if r.Reranked {
			entry.LLMScore = r.LLMScore
		}
		out.Results = append(out.Results, entry)
	}
	return out
}

func printSearchResults(resp *pipeline.Response, summary summarize.Result) {
	if len(resp.Results) == 0 {
		fmt.Println("No results.")
		return
	}

	if summary.Summary != "" {
		fmt.Printf("Summary: %s\n\n", summary.Summary)
	}

	for i, r := range resp.Results {
		fmt.Printf("%2d. %s (%s)  score=%.3f\n", i+1, r.Title, r.Path, r.FinalScore)
		if r.Snippet != "" {
			fmt.Printf("    %s\n", r.Snippet)
		}
	}

	fmt.Printf("\n%d results in %dms", resp.Total, resp.Duration.Milliseconds())
	if resp.UsedExpansion {
		fmt.Printf(", %d query variants", len(resp.Variants))
	}
	if resp.ExpansionDegraded || resp.RerankDegraded || summary.Degraded {
		fmt.Print(" (LLM unavailable, BM25 only)")
	}
	fmt.Println()
}
