package metrics_test

import (
	"errors"
	"testing"

	"github.com/m-lab/owstats/metrics"
)

func panicAndRecover() (err error) {
	defer func() {
		err = metrics.PanicToErr(nil, recover(), "foobar")
	}()
	a := []int{1, 2, 3}
	_ = a[4]
	return
}

func errorWithoutPanic(prior error) (err error) {
	err = prior
	defer func() {
		err = metrics.PanicToErr(err, recover(), "foobar")
	}()
	return
}

func TestHandlePanic(t *testing.T) {
	err := panicAndRecover()
	if err == nil {
		t.Fatal("should have errored")
	}
}

func TestNoPanic(t *testing.T) {
	err := errorWithoutPanic(nil)
	if err != nil {
		t.Error(err)
	}

	err = errorWithoutPanic(errors.New("prior"))
	if err.Error() != "prior" {
		t.Error("should have returned prior error")
	}
}

func rePanic() {
	defer func() {
		metrics.CountPanics(recover(), "foobar")
	}()
	a := []int{1, 2, 3}
	_ = a[4]
}

func TestCountPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("the code did not panic")
		}
	}()
	rePanic()
}

func TestMetricsLint(t *testing.T) {
	metrics.SessionCount.WithLabelValues("ok")
	metrics.ParseErrorCount.WithLabelValues("invalid_seq")
	metrics.WindowExtensionCount.WithLabelValues("packet")
	metrics.RecordsProcessed.Add(0)
	metrics.ParseDuration.Observe(0)
}
