package world

import (
	"context"
	"sync"

	"github.com/annel0/procworld/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/annel0/procworld/internal/world")

// Pool фиксированный пул воркеров генерации. Воркеры не видят состояние
// менеджера: задание приходит по значению, результат уходит в общий канал.
// Учёт занятости слотов ведёт владелец пула (цикл кадров).
type Pool struct {
	slots   []chan GenerationJob
	busy    []bool
	results chan GenerationResult

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool запускает size воркеров
func NewPool(size int, factory GeneratorFactory) *Pool {
	if size < 1 {
		size = 1
	}
	if factory == nil {
		factory = NewChunkGenerator
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		slots:   make([]chan GenerationJob, size),
		busy:    make([]bool, size),
		results: make(chan GenerationResult, size),
		ctx:     ctx,
		cancel:  cancel,
	}

	for i := range p.slots {
		p.slots[i] = make(chan GenerationJob, 1)
		p.wg.Add(1)
		go p.worker(i, factory())
	}
	return p
}

// Size число слотов
func (p *Pool) Size() int { return len(p.slots) }

// InFlight число занятых слотов
func (p *Pool) InFlight() int {
	n := 0
	for _, b := range p.busy {
		if b {
			n++
		}
	}
	return n
}

// idleSlot первый свободный слот или -1
func (p *Pool) idleSlot() int {
	for i, b := range p.busy {
		if !b {
			return i
		}
	}
	return -1
}

// dispatch отдаёт задание свободному слоту. Буфер слота равен 1, а слот
// свободен, поэтому отправка не блокирует.
func (p *Pool) dispatch(slot int, job GenerationJob) {
	p.busy[slot] = true
	p.slots[slot] <- job
}

// complete освобождает слот по пришедшему результату
func (p *Pool) complete(slot int) {
	if slot >= 0 && slot < len(p.busy) {
		p.busy[slot] = false
	}
}

// Results канал готовых результатов
func (p *Pool) Results() <-chan GenerationResult {
	return p.results
}

func (p *Pool) worker(slot int, gen Generator) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job := <-p.slots[slot]:
			res := p.run(slot, gen, job)
			// канал результатов вмещает по одному результату на слот
			select {
			case p.results <- res:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

func (p *Pool) run(slot int, gen Generator, job GenerationJob) (res GenerationResult) {
	ctx, span := tracer.Start(p.ctx, "chunk.generate", trace.WithAttributes(
		attribute.Int("chunk.x", job.Coords.X),
		attribute.Int("chunk.z", job.Coords.Y),
		attribute.Int("worker.slot", slot),
		attribute.String("job.id", job.JobID),
	))
	defer span.End()

	defer func() {
		// паника генератора не должна убить воркер: результат уйдёт как ошибка
		if r := recover(); r != nil {
			logging.Error("💥 Воркер %d: паника при генерации чанка (%d,%d): %v", slot, job.Coords.X, job.Coords.Y, r)
			res = GenerationResult{JobID: job.JobID, Coords: job.Coords, Err: errPanic}
		}
		res.Slot = slot
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
		}
	}()

	return gen.Generate(ctx, job)
}

// Close останавливает воркеров. Незавершённые задания бросаются.
func (p *Pool) Close() {
	p.cancel()
	p.wg.Wait()
}
