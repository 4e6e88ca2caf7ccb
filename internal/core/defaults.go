package core

// DefaultCategories is the set seeded for a user seen for the first time.
func DefaultCategories() []CategoryInput {
	return []CategoryInput{
		{Name: "Salary", Type: Income, Icon: "💰", Color: "#4CAF50"},
		{Name: "Bonus", Type: Income, Icon: "🎁", Color: "#8BC34A"},
		{Name: "Investment", Type: Income, Icon: "📈", Color: "#CDDC39"},
		{Name: "Other Income", Type: Income, Icon: "💵", Color: "#FFC107"},
		{Name: "Food & Drinks", Type: Expense, Icon: "🍔", Color: "#F44336"},
		{Name: "Transportation", Type: Expense, Icon: "🚗", Color: "#E91E63"},
		{Name: "Shopping", Type: Expense, Icon: "🛒", Color: "#9C27B0"},
		{Name: "Entertainment", Type: Expense, Icon: "🎬", Color: "#673AB7"},
		{Name: "Bills & Utilities", Type: Expense, Icon: "💡", Color: "#3F51B5"},
		{Name: "Healthcare", Type: Expense, Icon: "🏥", Color: "#2196F3"},
		{Name: "Education", Type: Expense, Icon: "📚", Color: "#00BCD4"},
		{Name: "Travel", Type: Expense, Icon: "✈️", Color: "#009688"},
		{Name: "Other", Type: Expense, Icon: "📦", Color: "#795548"},
	}
}

// DefaultWallet is the wallet every new user starts with.
func DefaultWallet() WalletInput {
	return WalletInput{Name: "Cash", Type: Cash, Icon: "💵", Balance: 0}
}
