// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rpc_test

import (
	"context"
	"testing"
	"time"

	"code.hybscloud.com/arpc/conn"
	"code.hybscloud.com/arpc/descriptor"
	"code.hybscloud.com/arpc/rpc"
	"code.hybscloud.com/arpc/rpcerr"
)

const sayHelloTo = 1

func newConnPair(t *testing.T) (client, server *conn.Connection) {
	t.Helper()
	a, b, err := descriptor.SocketPair()
	if err != nil {
		t.Fatalf("SocketPair: %v", err)
	}
	client, err = conn.New(a)
	if err != nil {
		t.Fatalf("conn.New(a): %v", err)
	}
	server, err = conn.New(b)
	if err != nil {
		t.Fatalf("conn.New(b): %v", err)
	}
	return client, server
}

func newGreeter() *rpc.Server {
	s := rpc.NewServer()
	s.Register("Greeter", sayHelloTo, rpc.Method(func(_ context.Context, name string) (string, error) {
		return "Hello " + name + "!", nil
	}))
	return s
}

// Scenario 6: server registers Greeter.say_hello_to(string) -> string;
// client proxy call with "world" returns "Hello world!".
func TestCallRoundTrip(t *testing.T) {
	clientConn, serverConn := newConnPair(t)
	server := newGreeter()

	serverDone := make(chan error, 1)
	go func() { serverDone <- server.Serve(context.Background(), serverConn) }()

	client := rpc.NewClient(clientConn)
	got, err := rpc.Call[string, string](context.Background(), client, "Greeter", sayHelloTo, "world")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != "Hello world!" {
		t.Fatalf("Call result = %q, want %q", got, "Hello world!")
	}

	if err := clientConn.Disconnect(); err != nil {
		t.Fatalf("client Disconnect: %v", err)
	}
	select {
	case err := <-serverDone:
		if err != nil {
			t.Fatalf("Serve returned %v, want nil after clean disconnect", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after client disconnected")
	}
	serverConn.Disconnect()
}

func TestCallUnknownObjectFailsKeyError(t *testing.T) {
	clientConn, serverConn := newConnPair(t)
	server := rpc.NewServer()

	go server.Serve(context.Background(), serverConn)
	defer func() { clientConn.Disconnect(); serverConn.Disconnect() }()

	client := rpc.NewClient(clientConn)
	_, err := rpc.Call[string, string](context.Background(), client, "Greeter", sayHelloTo, "world")
	if rpcerr.KindOf(err) != rpcerr.KeyError {
		t.Fatalf("Call on unregistered object = %v, want KeyError", err)
	}
}

func TestCallUnknownMethodFailsKeyError(t *testing.T) {
	clientConn, serverConn := newConnPair(t)
	server := newGreeter()

	go server.Serve(context.Background(), serverConn)
	defer func() { clientConn.Disconnect(); serverConn.Disconnect() }()

	client := rpc.NewClient(clientConn)
	_, err := rpc.Call[string, string](context.Background(), client, "Greeter", sayHelloTo+1, "world")
	if rpcerr.KindOf(err) != rpcerr.KeyError {
		t.Fatalf("Call on unregistered method = %v, want KeyError", err)
	}
}

func TestRegisterDuplicateFailsInvalidState(t *testing.T) {
	server := newGreeter()
	err := server.Register("Greeter", sayHelloTo, rpc.Method(func(_ context.Context, name string) (string, error) {
		return name, nil
	}))
	if rpcerr.KindOf(err) != rpcerr.InvalidState {
		t.Fatalf("duplicate Register = %v, want InvalidState", err)
	}
}

func TestHandlerErrorKindRoundTripsThroughErrorRegistry(t *testing.T) {
	clientConn, serverConn := newConnPair(t)
	server := rpc.NewServer()
	server.Register("Greeter", sayHelloTo, rpc.Method(func(_ context.Context, name string) (string, error) {
		return "", rpcerr.New(rpcerr.OutOfRange, "name too long")
	}))
	go server.Serve(context.Background(), serverConn)
	defer func() { clientConn.Disconnect(); serverConn.Disconnect() }()

	client := rpc.NewClient(clientConn)
	_, err := rpc.Call[string, string](context.Background(), client, "Greeter", sayHelloTo, "world")
	if rpcerr.KindOf(err) != rpcerr.OutOfRange {
		t.Fatalf("Call = %v, want OutOfRange (registered built-in kind)", err)
	}
}

// Scenario 6's second half: a disconnect that interrupts a pending call
// surfaces shutting-down to the caller.
func TestDisconnectMidCallSurfacesShuttingDown(t *testing.T) {
	clientConn, serverConn := newConnPair(t)
	server := rpc.NewServer()
	block := make(chan struct{})
	server.Register("Greeter", sayHelloTo, rpc.Method(func(_ context.Context, name string) (string, error) {
		<-block
		return "too late", nil
	}))

	serverDone := make(chan error, 1)
	go func() { serverDone <- server.Serve(context.Background(), serverConn) }()

	client := rpc.NewClient(clientConn)
	callDone := make(chan error, 1)
	go func() {
		_, err := rpc.Call[string, string](context.Background(), client, "Greeter", sayHelloTo, "world")
		callDone <- err
	}()

	// Give the request time to reach the handler and block there before
	// tearing down the client's connection out from under the pending call.
	time.Sleep(20 * time.Millisecond)
	if err := clientConn.Disconnect(); err != nil {
		t.Fatalf("client Disconnect: %v", err)
	}

	select {
	case err := <-callDone:
		if rpcerr.KindOf(err) != rpcerr.ShuttingDown {
			t.Fatalf("Call after mid-call disconnect = %v, want ShuttingDown", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Call did not return after client disconnected")
	}

	close(block)
	serverConn.Disconnect()
	<-serverDone
}
