package config

type WorkerKeyStruct struct {
	NotifyResponsesQueue string
}

var WorkerKey = &WorkerKeyStruct{
	NotifyResponsesQueue: "notify_responses_queue",
}
