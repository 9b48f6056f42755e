package entity

// Document type discriminators for the tenant-partitioned document store.
const (
	DocTypeTask     = "Task"
	DocTypeEvent    = "TaskEvent"
	DocTypeExpense  = "Expense"
	DocTypeProduct  = "Product"
	DocTypeAssignee = "Assignee"
)
