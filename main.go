package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/yashnalla/document-service-sub000/document"
	"github.com/yashnalla/document-service-sub000/identity"
	"github.com/yashnalla/document-service-sub000/server"
	"github.com/yashnalla/document-service-sub000/store"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	backend := flag.String("store", "memory", "storage backend: memory or firestore")
	project := flag.String("firestore-project", os.Getenv("FIRESTORE_PROJECT"), "GCP project for the firestore backend")
	flushInterval := flag.Duration("flush-interval", 5*time.Second, "write-back flush interval for the firestore backend")
	flag.Parse()

	var docs store.DocumentStore
	var changes store.ChangeLog

	switch *backend {
	case "memory":
		mem := store.NewMemoryStore()
		docs, changes = mem, mem
	case "firestore":
		if *project == "" {
			log.Fatal("firestore backend requires -firestore-project or FIRESTORE_PROJECT")
		}
		client, err := firestore.NewClient(context.Background(), *project)
		if err != nil {
			log.Fatalf("firestore client: %v", err)
		}
		cached := store.NewCachedStore(store.NewFirestoreStore(client), *flushInterval)
		defer cached.Close()
		docs, changes = cached, cached
	default:
		log.Fatalf("unknown store backend %q", *backend)
	}

	ids := identity.NewStaticResolver()
	registerTokens(ids, os.Getenv("AUTH_TOKENS"))

	svc := document.NewService(docs, changes, ids)
	hub := server.NewHub(svc)
	go hub.Run()

	handler := server.NewHandler(svc, hub)

	log.Printf("Starting server on %s (store=%s)", *addr, *backend)
	if err := http.ListenAndServe(*addr, handler); err != nil {
		log.Fatal(err)
	}
}

// registerTokens parses "token=Display Name,token2=Other Name" from the
// environment. Unknown tokens resolve to the anonymous identity.
func registerTokens(ids *identity.StaticResolver, env string) {
	for _, pair := range strings.Split(env, ",") {
		token, name, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || token == "" || name == "" {
			continue
		}
		ids.Register(token, identity.Identity{ID: token, Name: name})
	}
}
