package imapclient

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hkdb/imapkit/imap"
)

func TestClientSearchParsesNumsAndModSeq(t *testing.T) {
	c, fs := dialTestClient(t, "")
	t.Cleanup(func() { c.Close() })
	c.setState(imap.StateSelected)

	done := make(chan *SearchResult, 1)
	errCh := make(chan error, 1)
	yes := true
	go func() {
		res, err := c.Search(context.Background(), &imap.SearchQuery{Seen: &yes}, false)
		if err != nil {
			errCh <- err
			return
		}
		done <- res
	}()

	line := fs.readLine()
	if !strings.Contains(line, "SEARCH SEEN") {
		t.Fatalf("server saw %q, want a SEARCH SEEN command", line)
	}
	tag := strings.Fields(line)[0]
	fs.send("* SEARCH 2 4 6 (MODSEQ 917162500)\r\n")
	fs.send(tag + " OK SEARCH completed\r\n")

	select {
	case res := <-done:
		want := []uint32{2, 4, 6}
		if len(res.Nums) != len(want) {
			t.Fatalf("Nums = %v, want %v", res.Nums, want)
		}
		for i := range want {
			if res.Nums[i] != want[i] {
				t.Errorf("Nums[%d] = %d, want %d", i, res.Nums[i], want[i])
			}
		}
		if res.ModSeq != 917162500 {
			t.Errorf("ModSeq = %d, want 917162500", res.ModSeq)
		}
	case err := <-errCh:
		t.Fatalf("Search failed: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Search")
	}
}

func TestClientSearchUID(t *testing.T) {
	c, fs := dialTestClient(t, "")
	t.Cleanup(func() { c.Close() })
	c.setState(imap.StateSelected)

	done := make(chan *SearchResult, 1)
	go func() {
		res, err := c.Search(context.Background(), &imap.SearchQuery{}, true)
		if err != nil {
			t.Errorf("Search failed: %v", err)
			return
		}
		done <- res
	}()

	line := fs.readLine()
	if !strings.HasPrefix(line[strings.Index(line, " ")+1:], "UID SEARCH") {
		t.Fatalf("server saw %q, want a UID SEARCH command", line)
	}
	tag := strings.Fields(line)[0]
	fs.send("* SEARCH 101 102\r\n")
	fs.send(tag + " OK UID SEARCH completed\r\n")

	select {
	case res := <-done:
		if len(res.UIDs) != 2 || res.UIDs[0] != 101 || res.UIDs[1] != 102 {
			t.Errorf("UIDs = %v, want [101 102]", res.UIDs)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Search")
	}
}
