// Package ragdex provides an embedded Go client for the ragdex retrieval
// engine: document chunking, embedding, hybrid search, and context assembly
// without running the HTTP server.
//
//	client, _ := ragdex.New(
//	    ragdex.WithSQLite("data/ragdex.db"),
//	    ragdex.WithEmbedder(myEmbedder, 768),
//	)
//	defer client.Close()
//
//	_, _ = client.Ingest(ctx, ragdex.Document{
//	    SourceName: "handbook.pdf",
//	    Text:       text,
//	    Format:     ragdex.FormatPDF,
//	})
//
//	answer, _ := client.Query(ctx, "how many vacation days do I get?", nil)
//	fmt.Println(answer.Context)
//
// The embedder is supplied by the caller. Any implementation works as long
// as it returns fixed-width vectors; the client verifies the dimension and
// normalizes to unit length before indexing.
package ragdex
