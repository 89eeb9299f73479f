// Package scheduler implementa una cola de tareas diferidas en memoria para
// los reintentos y el polling de autorización del ciclo SRI.
package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/tu-usuario/facturador-sri/pkg/logger"
)

// task es una función pendiente con su instante de ejecución.
type task struct {
	runAt time.Time
	fn    func(ctx context.Context)
	seq   uint64 // desempate FIFO entre tareas con el mismo runAt
}

// taskHeap es un min-heap ordenado por runAt (y seq como desempate).
type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].runAt.Equal(h[j].runAt) {
		return h[i].seq < h[j].seq
	}
	return h[i].runAt.Before(h[j].runAt)
}
func (h taskHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)        { *h = append(*h, x.(*task)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// Scheduler despacha tareas diferidas desde una sola goroutine. Las tareas se
// ejecutan en goroutines propias para que una tarea lenta no retrase a las
// demás. Stop espera a que las tareas en vuelo terminen.
type Scheduler struct {
	mu      sync.Mutex
	tasks   taskHeap
	seq     uint64
	wake    chan struct{}
	done    chan struct{}
	stopped bool
	inFly   sync.WaitGroup
	timeout time.Duration // timeout del ctx de cada tarea
	log     *logger.Logger
}

// New crea el scheduler y arranca su goroutine de despacho.
func New(taskTimeout time.Duration, log *logger.Logger) *Scheduler {
	if taskTimeout <= 0 {
		taskTimeout = 2 * time.Minute
	}
	s := &Scheduler{
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		timeout: taskTimeout,
		log:     log,
	}
	heap.Init(&s.tasks)
	go s.loop()
	return s
}

// Schedule encola fn para ejecutarse tras delay. Después de Stop, las tareas
// nuevas se descartan con un warning.
func (s *Scheduler) Schedule(delay time.Duration, fn func(ctx context.Context)) {
	if delay < 0 {
		delay = 0
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.log.Warn().Msg("scheduler detenido, tarea descartada")
		return
	}
	s.seq++
	heap.Push(&s.tasks, &task{runAt: time.Now().Add(delay), fn: fn, seq: s.seq})
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Stop detiene el despacho y espera a las tareas en ejecución. Las tareas aún
// encoladas no se ejecutan; sobreviven solo como estado en DB (una factura
// SUBMITTED se retoma vía reproceso al reiniciar).
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.done)
	s.inFly.Wait()
}

// Pending devuelve cuántas tareas esperan en cola (diagnóstico).
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks.Len()
}

// loop es la única goroutine que toca el heap: duerme hasta la próxima tarea
// o hasta que Schedule la despierte con algo más temprano.
func (s *Scheduler) loop() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		s.mu.Lock()
		var wait time.Duration
		if s.tasks.Len() == 0 {
			wait = time.Hour
		} else {
			wait = time.Until(s.tasks[0].runAt)
		}
		s.mu.Unlock()

		if wait > 0 {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(wait)
			select {
			case <-s.done:
				return
			case <-s.wake:
				continue
			case <-timer.C:
			}
		}

		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		if s.tasks.Len() == 0 || s.tasks[0].runAt.After(time.Now()) {
			s.mu.Unlock()
			continue
		}
		t := heap.Pop(&s.tasks).(*task)
		// El Add va bajo el mismo lock que marca stopped: así ninguna tarea
		// puede arrancar después de que Stop haya hecho Wait.
		s.inFly.Add(1)
		s.mu.Unlock()

		go func(t *task) {
			defer s.inFly.Done()
			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			defer cancel()
			t.fn(ctx)
		}(t)
	}
}
