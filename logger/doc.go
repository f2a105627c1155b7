// Package logger provides structured logging functionality for the queue
// and its adapters, including context propagation so store code can log
// with whatever logger the calling request or tick carries.
package logger
