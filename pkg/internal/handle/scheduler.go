package handle

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yeisme/carevault/pkg/middleware"
	"github.com/yeisme/carevault/pkg/scheduler"
)

func schedulerOf(c *gin.Context) *scheduler.Scheduler {
	sched := middleware.GetScheduler(c)
	if sched == nil {
		fail(c, http.StatusServiceUnavailable, "scheduler not initialized")
	}

	return sched
}

func schedulerError(c *gin.Context, err error) {
	if errors.Is(err, scheduler.ErrJobNotFound) {
		fail(c, http.StatusNotFound, err.Error())
		return
	}

	fail(c, http.StatusInternalServerError, err.Error())
}

// SchedulerJobs 返回所有调度器任务信息.
func SchedulerJobs(c *gin.Context) {
	sched := schedulerOf(c)
	if sched == nil {
		return
	}

	ok(c, http.StatusOK, "jobs", gin.H{"jobs": sched.GetJobInfos()})
}

// SchedulerJob 返回单个任务.
func SchedulerJob(c *gin.Context) {
	sched := schedulerOf(c)
	if sched == nil {
		return
	}

	info, err := sched.GetJobInfoByName(c.Param("name"))
	if err != nil {
		schedulerError(c, err)
		return
	}

	ok(c, http.StatusOK, "job", gin.H{"job": info})
}

// SchedulerRunJob 立即执行一次任务.
func SchedulerRunJob(c *gin.Context) {
	sched := schedulerOf(c)
	if sched == nil {
		return
	}

	if err := sched.RunNow(c.Param("name")); err != nil {
		schedulerError(c, err)
		return
	}

	ok(c, http.StatusAccepted, "job triggered", nil)
}

// SchedulerStopJobs 停止所有任务.
func SchedulerStopJobs(c *gin.Context) {
	sched := schedulerOf(c)
	if sched == nil {
		return
	}

	if err := sched.StopJobs(); err != nil {
		schedulerError(c, err)
		return
	}

	ok(c, http.StatusOK, "jobs stopped", nil)
}

// SchedulerRemoveJob 根据名称或 id 删除任务.
func SchedulerRemoveJob(c *gin.Context) {
	sched := schedulerOf(c)
	if sched == nil {
		return
	}

	ref := c.Param("name")

	var err error
	if id, perr := uuid.Parse(ref); perr == nil {
		err = sched.RemoveJob(id)
	} else {
		err = sched.RemoveJobByName(ref)
	}

	if err != nil {
		schedulerError(c, err)
		return
	}

	ok(c, http.StatusOK, "job removed", nil)
}

// SchedulerQueueWaiting 返回队列中等待的任务数.
func SchedulerQueueWaiting(c *gin.Context) {
	sched := schedulerOf(c)
	if sched == nil {
		return
	}

	ok(c, http.StatusOK, "waiting", gin.H{"waiting": sched.JobsWaitingInQueue()})
}
