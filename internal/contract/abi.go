package contract

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	methodAddRecord   = "addToBlockchain"
	methodAllRecords  = "getAllTransactions"
	methodRecordCount = "getTransactionCount"
)

// TransactionsABI is the interface of the deployed Transactions contract.
const TransactionsABI = `[
  {
    "anonymous": false,
    "type": "event",
    "name": "Transfer",
    "inputs": [
      { "indexed": false, "internalType": "address", "name": "from", "type": "address" },
      { "indexed": false, "internalType": "address", "name": "receiver", "type": "address" },
      { "indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256" },
      { "indexed": false, "internalType": "string", "name": "message", "type": "string" },
      { "indexed": false, "internalType": "uint256", "name": "timestamp", "type": "uint256" },
      { "indexed": false, "internalType": "string", "name": "keyword", "type": "string" }
    ]
  },
  {
    "type": "function",
    "name": "addToBlockchain",
    "inputs": [
      { "internalType": "address payable", "name": "receiver", "type": "address" },
      { "internalType": "uint256", "name": "amount", "type": "uint256" },
      { "internalType": "string", "name": "message", "type": "string" },
      { "internalType": "string", "name": "keyword", "type": "string" }
    ],
    "outputs": [],
    "stateMutability": "nonpayable"
  },
  {
    "type": "function",
    "name": "getAllTransactions",
    "inputs": [],
    "outputs": [
      {
        "internalType": "struct Transactions.TransferStruct[]",
        "name": "",
        "type": "tuple[]",
        "components": [
          { "internalType": "address", "name": "sender", "type": "address" },
          { "internalType": "address", "name": "receiver", "type": "address" },
          { "internalType": "uint256", "name": "amount", "type": "uint256" },
          { "internalType": "string", "name": "message", "type": "string" },
          { "internalType": "uint256", "name": "timestamp", "type": "uint256" },
          { "internalType": "string", "name": "keyword", "type": "string" }
        ]
      }
    ],
    "stateMutability": "view"
  },
  {
    "type": "function",
    "name": "getTransactionCount",
    "inputs": [],
    "outputs": [
      { "internalType": "uint256", "name": "", "type": "uint256" }
    ],
    "stateMutability": "view"
  }
]`

func ParseABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(TransactionsABI))
}
