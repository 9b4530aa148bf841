// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import "context"

// FakeClient is a scripted Client used by tests.
type FakeClient struct {
	Response ChatResult
	Err      error
	Calls    []FakeCall
}

// FakeCall records one invocation for assertions.
type FakeCall struct {
	System   string
	Messages []Message
	Params   Params
}

func NewFakeClient(response ChatResult) *FakeClient {
	return &FakeClient{Response: response}
}

func (f *FakeClient) Chat(_ context.Context, system string, messages []Message, params Params) (ChatResult, error) {
	f.Calls = append(f.Calls, FakeCall{System: system, Messages: messages, Params: params})
	if f.Err != nil {
		return ChatResult{}, f.Err
	}
	return f.Response, nil
}

var _ Client = (*FakeClient)(nil)
