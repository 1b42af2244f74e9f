package main

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestNewRedisClient(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantAddr string
		wantDB   int
		wantErr  bool
	}{
		{name: "plain", url: "redis://localhost:6379", wantAddr: "localhost:6379"},
		{name: "with db", url: "redis://cache.internal:6380/2", wantAddr: "cache.internal:6380", wantDB: 2},
		{name: "bad scheme", url: "http://localhost:6379", wantErr: true},
		{name: "empty", url: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := newRedisClient(tt.url)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("newRedisClient(%q) expected error", tt.url)
				}
				return
			}
			if err != nil {
				t.Fatalf("newRedisClient(%q) = %v", tt.url, err)
			}
			defer c.Close()
			if got := c.Options().Addr; got != tt.wantAddr {
				t.Errorf("Addr = %q, want %q", got, tt.wantAddr)
			}
			if got := c.Options().DB; got != tt.wantDB {
				t.Errorf("DB = %d, want %d", got, tt.wantDB)
			}
		})
	}
}

func TestNewRedisClient_Timeouts(t *testing.T) {
	c, err := newRedisClient("redis://localhost:6379")
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	opts := c.Options()
	if opts.DialTimeout != redisDialTimeout || opts.ReadTimeout != redisIOTimeout || opts.WriteTimeout != redisIOTimeout {
		t.Errorf("timeouts = %v/%v/%v", opts.DialTimeout, opts.ReadTimeout, opts.WriteTimeout)
	}
	if opts.MaxRetries != redisMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", opts.MaxRetries, redisMaxRetries)
	}

	c2, err := newRedisClient("redis://localhost:6379?dial_timeout=2s&read_timeout=1s")
	if err != nil {
		t.Fatal(err)
	}
	defer c2.Close()
	if c2.Options().DialTimeout != 2*time.Second || c2.Options().ReadTimeout != time.Second {
		t.Errorf("URL timeouts overridden: %v/%v", c2.Options().DialTimeout, c2.Options().ReadTimeout)
	}
}

// TestNewRedisClient_HungStoreFailsFast points at a listener that accepts but never
// replies; a command returns within the configured budget.
func TestNewRedisClient_HungStoreFailsFast(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	conns := make(chan net.Conn, 16)
	defer func() {
		_ = ln.Close()
		for {
			select {
			case conn := <-conns:
				_ = conn.Close()
			default:
				return
			}
		}
	}()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			select {
			case conns <- conn:
			default:
				_ = conn.Close()
			}
		}
	}()

	c, err := newRedisClient("redis://" + ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	start := time.Now()
	if err := c.Get(context.Background(), "weather:London").Err(); err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Get took %v on a hung store", elapsed)
	}
}
