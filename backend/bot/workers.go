// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package bot

import "sync"

// workerPool bounds how many dispatched updates run at once. Submit blocks
// once the queue fills, which is the backpressure point for the webhook
// front door.
type workerPool struct {
	tasks chan func()
	wg    sync.WaitGroup
}

func newWorkerPool(workers, queueSize int) *workerPool {
	p := &workerPool{tasks: make(chan func(), queueSize)}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				task()
			}
		}()
	}
	return p
}

func (p *workerPool) Submit(task func()) {
	p.tasks <- task
}

// Close drains the queue and waits for the workers to exit.
func (p *workerPool) Close() {
	close(p.tasks)
	p.wg.Wait()
}
