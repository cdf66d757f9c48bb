// Package main is the entry point of the application host.
//
// One process runs one worker: it loads the application under APP_ROOT,
// serves its interfaces over HTTP and WebSocket, and hot-reloads files as
// they change.
//
// Architecture:
//
//	HTTP / WebSocket → Interface Registry → api procedures (sandbox)
//	                                     → lib, db, domain modules
//
// Deployment kinds:
//   - server: loads every place except the scheduler and listens on HOST:PORT
//   - scheduler: also loads scheduler tasks; no listener
//
// Configuration:
//   - Environment variables (12-factor), see internal/infrastructure/config
//   - CLI flags -root and -kind override APP_ROOT and APP_KIND
//
// Usage:
//
//	APP_ROOT=./application PORT=8000 ./server
//	./server -root ./application -kind scheduler
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
