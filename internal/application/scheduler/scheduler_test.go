package scheduler_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tu-usuario/facturador-sri/internal/application/scheduler"
	"github.com/tu-usuario/facturador-sri/pkg/logger"
)

func newTestScheduler() *scheduler.Scheduler {
	return scheduler.New(5*time.Second, logger.New(logger.Config{Env: "development", Level: "error"}))
}

func TestSchedule_EjecutaTarea(t *testing.T) {
	s := newTestScheduler()
	defer s.Stop()

	done := make(chan struct{})
	s.Schedule(0, func(ctx context.Context) { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("la tarea nunca se ejecutó")
	}
}

func TestSchedule_RespetaDelay(t *testing.T) {
	s := newTestScheduler()
	defer s.Stop()

	start := time.Now()
	done := make(chan time.Duration, 1)
	s.Schedule(150*time.Millisecond, func(ctx context.Context) {
		done <- time.Since(start)
	})

	select {
	case elapsed := <-done:
		assert.GreaterOrEqual(t, elapsed, 150*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("la tarea nunca se ejecutó")
	}
}

func TestSchedule_OrdenPorInstante(t *testing.T) {
	s := newTestScheduler()
	defer s.Stop()

	var mu sync.Mutex
	var order []string
	record := func(name string) func(ctx context.Context) {
		return func(ctx context.Context) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}

	// Encoladas en orden inverso a su instante de ejecución.
	s.Schedule(200*time.Millisecond, record("tarde"))
	s.Schedule(50*time.Millisecond, record("temprano"))

	time.Sleep(400 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"temprano", "tarde"}, order)
}

func TestStop_EsperaTareasEnVuelo(t *testing.T) {
	s := newTestScheduler()

	var finished bool
	var mu sync.Mutex
	started := make(chan struct{})
	s.Schedule(0, func(ctx context.Context) {
		close(started)
		time.Sleep(100 * time.Millisecond)
		mu.Lock()
		finished = true
		mu.Unlock()
	})

	<-started
	s.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, finished, "Stop debe esperar a la tarea en ejecución")
}

func TestStop_NingunaTareaArrancaDespues(t *testing.T) {
	// Carrera Stop vs despacho: tareas vencidas en cola al momento de Stop no
	// deben arrancar una vez que Stop retornó.
	for i := 0; i < 50; i++ {
		s := newTestScheduler()

		var started atomic.Int32
		for j := 0; j < 5; j++ {
			s.Schedule(0, func(ctx context.Context) { started.Add(1) })
		}
		s.Stop()

		antes := started.Load()
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, antes, started.Load(), "una tarea arrancó después de que Stop retornó")
	}
}

func TestSchedule_DespuesDeStopSeDescarta(t *testing.T) {
	s := newTestScheduler()
	s.Stop()

	ran := make(chan struct{}, 1)
	s.Schedule(0, func(ctx context.Context) { ran <- struct{}{} })

	select {
	case <-ran:
		t.Fatal("una tarea encolada tras Stop no debe ejecutarse")
	case <-time.After(200 * time.Millisecond):
	}
	assert.Equal(t, 0, s.Pending())
}
