package utils

import (
	"github.com/schollz/progressbar/v3"
	"log"
	"sync"
)

// TaskOrchestrator runs at most maxConcurrentOperations tasks at a time.
// Callers invoke StartTask before spawning each goroutine and FinishTask when it ends.
type TaskOrchestrator struct {
	bar   *progressbar.ProgressBar
	wg    sync.WaitGroup
	mutex sync.Mutex
	sem   chan int
}

func NewTaskOrchestrator(bar *progressbar.ProgressBar, numberOfTasks int, maxConcurrentOperations int64) *TaskOrchestrator {
	if bar == nil {
		bar = progressbar.DefaultSilent(int64(numberOfTasks))
	}

	if maxConcurrentOperations < 1 {
		maxConcurrentOperations = 1
	}

	task := TaskOrchestrator{
		bar: bar,
		sem: make(chan int, maxConcurrentOperations),
	}

	task.wg.Add(numberOfTasks)
	return &task
}

func (task *TaskOrchestrator) StartTask() {
	task.sem <- 1
}

func (task *TaskOrchestrator) Lock() {
	task.mutex.Lock()
}

func (task *TaskOrchestrator) Unlock() {
	task.mutex.Unlock()
}

func (task *TaskOrchestrator) FinishTask() {
	err := task.bar.Add(1)

	if err != nil {
		log.Printf("failed to update progress bar: %v", err)
	}

	<-task.sem
	task.wg.Done()
}

func (task *TaskOrchestrator) WaitForTasks() {
	task.wg.Wait()
}

// NewProgressBar returns a terminal bar when visible, otherwise a silent one.
func NewProgressBar(total int64, visible bool, description string) *progressbar.ProgressBar {
	if !visible {
		return progressbar.DefaultSilent(total, description)
	}

	return progressbar.Default(total, description)
}
