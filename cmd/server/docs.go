package main

//go:generate swag init -g cmd/server/main.go -o docs

// @title           Carbid Settlement API
// @version         1.0
// @description     Vehicle auction settlement backend: bidding, wallet ledger, escrow custody, dispute triage.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
