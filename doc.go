// Package tokentab provides an embedded Go client for token accounting of
// LLM chat calls: every provider round is booked into a per-session ledger
// with token counts, USD cost, and an optional cumulative warning threshold.
//
// # Tracking without a provider
//
//	client, _ := tokentab.New(ctx)
//	defer client.Close()
//
//	sess, _ := client.NewSession(ctx, &tokentab.SessionOptions{Label: "batch-42"})
//	out, _ := sess.Track(ctx, "summarize report",
//	    tokentab.Usage{PromptTokens: 812, CompletionTokens: 240})
//	fmt.Println(out.Record.Cost, out.SessionTokens)
//
//	rep, _ := sess.Report(ctx)
//	csv, _ := sess.ExportCSV(ctx)
//
// # Chat with automatic accounting
//
//	client, _ := tokentab.New(ctx,
//	    tokentab.WithOpenAI(os.Getenv("OPENAI_API_KEY")),
//	    tokentab.WithModel("gpt-4o-mini"),
//	)
//
//	sess, _ := client.NewSession(ctx, nil)
//	res, _ := sess.Chat(ctx, []tokentab.Message{
//	    {Role: tokentab.RoleUser, Content: "hello"},
//	}, nil)
//	fmt.Println(res.Content, res.Cost, res.SessionTokens)
//
// # Typed tools from struct tags
//
//	type WeatherArgs struct {
//	    City string `tokentab:"city,required" desc:"City name"`
//	    Unit string `tokentab:"unit" desc:"celsius or fahrenheit"`
//	}
//
//	weather, _ := tokentab.NewTool[WeatherArgs]("get_weather", "Current weather for a city",
//	    func(ctx context.Context, a WeatherArgs) (string, error) {
//	        return lookup(a.City, a.Unit)
//	    })
//	client, _ := tokentab.New(ctx, tokentab.WithOpenAI(key), tokentab.WithTools(weather))
//
// Sessions live in memory by default. Configure Redis or Valkey with
// WithRedis/WithValkey to persist ledgers and budget counters across
// restarts.
package tokentab
