// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/brillout/wildcard-api-sub000"
)

type todo struct {
	ID    int    `json:"id"`
	Text  string `json:"text"`
	Owner string `json:"owner"`
	Done  bool   `json:"done"`
}

type todoStore struct {
	mu    sync.Mutex
	next  int
	todos []todo
}

var errNotLoggedIn = errors.New("not logged in")

func currentUser(ctx context.Context) (string, error) {
	user, ok, err := wildcard.ContextFrom(ctx).String("user")
	if err != nil {
		return "", err
	}
	if !ok || user == "" {
		return "", errNotLoggedIn
	}
	return user, nil
}

func registerDemoEndpoints(r *wildcard.Registry) error {
	store := &todoStore{next: 1}
	endpoints := map[string]any{
		"hello": func(name string) string { return "Hello " + name },
		"now": func(ctx context.Context) (time.Time, error) {
			now := time.Now()
			tz, ok, err := wildcard.ContextFrom(ctx).String("timezone")
			if err != nil || !ok {
				return now, err
			}
			loc, err := time.LoadLocation(tz)
			if err != nil {
				return now, err
			}
			return now.In(loc), nil
		},
		"login": func(ctx context.Context, user string) error {
			user = strings.TrimSpace(user)
			if user == "" {
				return errors.New("empty user name")
			}
			return wildcard.ContextFrom(ctx).Set("user", user)
		},
		"logout": func(ctx context.Context) error {
			return wildcard.ContextFrom(ctx).Set("user", nil)
		},
		"whoami": func(ctx context.Context) (string, error) {
			return currentUser(ctx)
		},
		"addTodo": func(ctx context.Context, text string) (todo, error) {
			user, err := currentUser(ctx)
			if err != nil {
				return todo{}, err
			}
			store.mu.Lock()
			defer store.mu.Unlock()
			t := todo{ID: store.next, Text: text, Owner: user}
			store.next++
			store.todos = append(store.todos, t)
			return t, nil
		},
		"todos": func(ctx context.Context) ([]todo, error) {
			user, err := currentUser(ctx)
			if err != nil {
				return nil, err
			}
			store.mu.Lock()
			defer store.mu.Unlock()
			out := []todo{}
			for _, t := range store.todos {
				if t.Owner == user {
					out = append(out, t)
				}
			}
			return out, nil
		},
	}
	for name, fn := range endpoints {
		if err := r.Register(name, fn); err != nil {
			return err
		}
	}
	return nil
}
