package contcache

import "testing"

type fakeQueue struct{}

func (fakeQueue) Enqueue(func()) {}

func TestGetReturnsZeroedRecord(t *testing.T) {
	r := Get()
	if r.Next.Load() != nil || r.Queue != nil || r.Fn != nil {
		t.Fatal("Get() did not return a zeroed record")
	}
	Put(r)
}

func TestPutClearsFieldsBeforeRecycling(t *testing.T) {
	r := Get()
	r.Queue = fakeQueue{}
	r.Fn = func() {}
	other := Get()
	r.Next.Store(other)
	Put(other)
	Put(r)

	r2 := Get()
	if r2.Next.Load() != nil || r2.Queue != nil || r2.Fn != nil {
		t.Fatal("recycled record retained stale fields")
	}
}
