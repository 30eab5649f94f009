// Package supervisor manages the lifecycle of one pausable worker per task.
//
// A Supervisor validates parameters through its Builder before touching the
// current worker, so a rejected Start leaves everything as it was. Every
// accepted Start supersedes the previous worker: it is cancelled and the new
// one starts from its own initial state. By default the old worker is not
// waited for; WithSyncRestart changes that.
package supervisor
